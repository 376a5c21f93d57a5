package metrics

import (
	"fmt"

	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/geometry"
	"github.com/spboyer/keysmith/internal/layout"
)

// MetricScore is one line of a Breakdown.
type MetricScore struct {
	Name     string  `json:"name"`
	Type     Type    `json:"type"`
	Ngram    string  `json:"ngram"`
	Raw      float64 `json:"raw"`
	Weight   int     `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// Breakdown is a scored layout: per-metric values in set order and their
// weighted sum. Lower totals are better.
type Breakdown struct {
	Metrics []MetricScore `json:"metrics"`
	Total   float64       `json:"total"`
}

// Raw returns the raw values in set order.
func (b Breakdown) Raw() []float64 {
	out := make([]float64, len(b.Metrics))
	for i, m := range b.Metrics {
		out[i] = m.Raw
	}
	return out
}

type gram struct {
	chars [3]int
	// weight is the n-gram's share of its table, as a percentage.
	weight float64
}

// Evaluator scores layouts of a fixed alphabet on a fixed geometry against
// a corpus. Costs are tabulated per key tuple once; the Evaluator is
// read-only afterwards and safe to share between goroutines.
type Evaluator struct {
	set      *Set
	geometry *geometry.Geometry
	alphabet []rune
	keyCount int

	// costs[i] is metric i's cost indexed by key tuple.
	costs [][]float64
	// byKind lists metric indices per corpus table.
	byKind [4][]int
	grams  [4][]gram
	// touching[kind][c] lists the grams that contain character c.
	touching [4][][]int32
}

// NewEvaluator prepares the cost tables for a metric set. N-grams with a
// character outside alphabet are dropped but still count towards their
// table's total, so they score as zero cost.
func NewEvaluator(c *corpus.Corpus, g *geometry.Geometry, set *Set, alphabet []rune) (*Evaluator, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptyMetricSet
	}

	index := make(map[rune]int, len(alphabet))
	for i, r := range alphabet {
		if _, dup := index[r]; dup {
			return nil, fmt.Errorf("%w: %q", layout.ErrDuplicateChar, r)
		}
		index[r] = i
	}

	e := &Evaluator{
		set:      set,
		geometry: g,
		alphabet: append([]rune(nil), alphabet...),
		keyCount: g.Len(),
		costs:    make([][]float64, set.Len()),
	}

	for i := 0; i < set.Len(); i++ {
		m := set.At(i)
		kind := m.Kind()
		e.byKind[kind] = append(e.byKind[kind], i)
		e.costs[i] = tabulate(m, g, kind.Order())
	}

	for _, kind := range corpus.Kinds {
		if len(e.byKind[kind]) == 0 {
			continue
		}
		total := c.Total(kind)
		e.touching[kind] = make([][]int32, len(alphabet))
		if total == 0 {
			continue
		}
		for _, ng := range c.Entries(kind) {
			gr := gram{weight: 100 * ng.Count / total}
			active := true
			for j, r := range ng.Chars {
				ci, ok := index[r]
				if !ok {
					active = false
					break
				}
				gr.chars[j] = ci
			}
			if !active {
				continue
			}
			id := int32(len(e.grams[kind]))
			e.grams[kind] = append(e.grams[kind], gr)
			for j := 0; j < kind.Order(); j++ {
				ci := gr.chars[j]
				list := e.touching[kind][ci]
				if len(list) > 0 && list[len(list)-1] == id {
					continue
				}
				e.touching[kind][ci] = append(list, id)
			}
		}
	}

	return e, nil
}

// tabulate evaluates m on every key tuple of the given order.
func tabulate(m Metric, g *geometry.Geometry, order int) []float64 {
	k := g.Len()
	size := 1
	for i := 0; i < order; i++ {
		size *= k
	}
	table := make([]float64, size)
	keys := make([]int, order)
	for idx := range table {
		rem := idx
		for j := order - 1; j >= 0; j-- {
			keys[j] = rem % k
			rem /= k
		}
		table[idx] = m.Cost(g, keys)
	}
	return table
}

// Set returns the metric set.
func (e *Evaluator) Set() *Set { return e.set }

// Geometry returns the geometry the costs were tabulated on.
func (e *Evaluator) Geometry() *geometry.Geometry { return e.geometry }

// Alphabet returns the active alphabet.
func (e *Evaluator) Alphabet() []rune { return append([]rune(nil), e.alphabet...) }

// Check reports whether l can be scored by this evaluator.
func (e *Evaluator) Check(l *layout.Layout) error {
	if l.KeyCount() != e.keyCount {
		return fmt.Errorf("layout has %d keys, geometry %s has %d", l.KeyCount(), e.geometry.Name(), e.keyCount)
	}
	got := l.Alphabet()
	if len(got) != len(e.alphabet) {
		return fmt.Errorf("layout has %d characters, evaluator expects %d", len(got), len(e.alphabet))
	}
	for i := range got {
		if got[i] != e.alphabet[i] {
			return fmt.Errorf("layout character %d is %q, evaluator expects %q", i, got[i], e.alphabet[i])
		}
	}
	return nil
}

func (e *Evaluator) tupleIndex(kind corpus.Kind, gr *gram, keyOf func(int) int) int {
	idx := 0
	for j := 0; j < kind.Order(); j++ {
		idx = idx*e.keyCount + keyOf(gr.chars[j])
	}
	return idx
}

// Evaluate computes the full breakdown of l.
func (e *Evaluator) Evaluate(l *layout.Layout) Breakdown {
	raw := make([]float64, e.set.Len())
	for _, kind := range corpus.Kinds {
		ids := e.byKind[kind]
		if len(ids) == 0 {
			continue
		}
		for gi := range e.grams[kind] {
			gr := &e.grams[kind][gi]
			idx := e.tupleIndex(kind, gr, l.KeyOf)
			for _, mi := range ids {
				raw[mi] += gr.weight * e.costs[mi][idx]
			}
		}
	}
	return e.breakdown(raw)
}

func (e *Evaluator) breakdown(raw []float64) Breakdown {
	b := Breakdown{Metrics: make([]MetricScore, e.set.Len())}
	for i := range raw {
		w := e.set.At(i)
		weighted := raw[i] * float64(w.Weight)
		b.Metrics[i] = MetricScore{
			Name:     w.Name(),
			Type:     w.Type(),
			Ngram:    w.Kind().String(),
			Raw:      raw[i],
			Weight:   w.Weight,
			Weighted: weighted,
		}
		b.Total += weighted
	}
	return b
}

// Total returns the weighted sum of raw values given in set order.
func (e *Evaluator) Total(raw []float64) float64 {
	total := 0.0
	for i, r := range raw {
		total += r * float64(e.set.At(i).Weight)
	}
	return total
}

// SwapDelta returns the change in total that swapping the contents of keys
// p and q would cause, without modifying l. When out is non-nil it must
// have one entry per metric and receives the per-metric raw deltas. Only
// n-grams containing one of the two moved characters are visited.
func (e *Evaluator) SwapDelta(l *layout.Layout, p, q int, out []float64) float64 {
	for i := range out {
		out[i] = 0
	}
	a, b := l.CharAt(p), l.CharAt(q)
	if p == q || (a == layout.Free && b == layout.Free) {
		return 0
	}

	after := func(c int) int {
		switch c {
		case a:
			return q
		case b:
			return p
		}
		return l.KeyOf(c)
	}

	var rawDelta []float64
	if out != nil {
		rawDelta = out
	} else {
		rawDelta = make([]float64, e.set.Len())
	}

	for _, kind := range corpus.Kinds {
		ids := e.byKind[kind]
		if len(ids) == 0 || len(e.grams[kind]) == 0 {
			continue
		}
		if a != layout.Free {
			for _, id := range e.touching[kind][a] {
				e.gramDelta(kind, &e.grams[kind][id], l.KeyOf, after, ids, rawDelta)
			}
		}
		if b != layout.Free {
			for _, id := range e.touching[kind][b] {
				gr := &e.grams[kind][id]
				if a != layout.Free && gr.contains(kind, a) {
					continue
				}
				e.gramDelta(kind, gr, l.KeyOf, after, ids, rawDelta)
			}
		}
	}

	return e.Total(rawDelta)
}

func (e *Evaluator) gramDelta(kind corpus.Kind, gr *gram, before, after func(int) int, ids []int, delta []float64) {
	from := e.tupleIndex(kind, gr, before)
	to := e.tupleIndex(kind, gr, after)
	for _, mi := range ids {
		delta[mi] += gr.weight * (e.costs[mi][to] - e.costs[mi][from])
	}
}

func (g *gram) contains(kind corpus.Kind, c int) bool {
	for j := 0; j < kind.Order(); j++ {
		if g.chars[j] == c {
			return true
		}
	}
	return false
}
