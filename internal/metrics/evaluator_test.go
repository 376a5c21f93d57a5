package metrics

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/geometry"
	"github.com/spboyer/keysmith/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.New("tiny", corpus.Tables{
		Bigrams: map[string]float64{"ab": 10, "ba": 5, "ac": 1},
	})
	require.NoError(t, err)
	return c
}

func adjacentSet(t *testing.T, weight int) *Set {
	t.Helper()
	s, err := NewSet(Weighted{mustCreate(t, TypeAdjacent, nil), weight})
	require.NoError(t, err)
	return s
}

func TestEvaluate(t *testing.T) {
	g := ortho(t)
	e, err := NewEvaluator(tinyCorpus(t), g, adjacentSet(t, 1), []rune("abc"))
	require.NoError(t, err)

	l, err := layout.Parse([]rune("abc"), g.Len(), "abc")
	require.NoError(t, err)
	require.NoError(t, e.Check(l))

	// ab and ba are neighbours, ac is two columns apart
	b := e.Evaluate(l)
	require.Len(t, b.Metrics, 1)
	assert.Equal(t, "adjacent", b.Metrics[0].Name)
	assert.Equal(t, "bigram", b.Metrics[0].Ngram)
	assert.InDelta(t, 93.75, b.Metrics[0].Raw, 1e-9)
	assert.InDelta(t, 93.75, b.Total, 1e-9)
}

func TestEvaluate_SignedWeights(t *testing.T) {
	g := ortho(t)
	c := tinyCorpus(t)
	pos, err := NewEvaluator(c, g, adjacentSet(t, 3), []rune("abc"))
	require.NoError(t, err)
	neg, err := NewEvaluator(c, g, adjacentSet(t, -3), []rune("abc"))
	require.NoError(t, err)

	l, err := layout.Parse([]rune("abc"), g.Len(), "a_bc")
	require.NoError(t, err)

	bp, bn := pos.Evaluate(l), neg.Evaluate(l)
	assert.InDelta(t, bp.Metrics[0].Raw, bn.Metrics[0].Raw, 1e-12)
	assert.InDelta(t, -bp.Total, bn.Total, 1e-12)

	// moving b next to a costs the positive set what it saves the negative one
	assert.InDelta(t, -pos.SwapDelta(l, 1, 2, nil), neg.SwapDelta(l, 1, 2, nil), 1e-12)
	assert.Greater(t, pos.SwapDelta(l, 1, 2, nil), 0.0)
}

func TestEvaluate_InactiveCharactersScoreZero(t *testing.T) {
	g := ortho(t)
	e, err := NewEvaluator(tinyCorpus(t), g, adjacentSet(t, 1), []rune("ab"))
	require.NoError(t, err)

	l, err := layout.Parse([]rune("ab"), g.Len(), "ab")
	require.NoError(t, err)

	// ac is dropped but its mass stays in the denominator
	b := e.Evaluate(l)
	assert.InDelta(t, 93.75, b.Metrics[0].Raw, 1e-9)

	far, err := layout.Parse([]rune("ab"), g.Len(), "a___b")
	require.NoError(t, err)
	assert.InDelta(t, 0, e.Evaluate(far).Total, 1e-12)
}

func TestEvaluate_MissingTableScoresZero(t *testing.T) {
	g := ortho(t)
	s, err := NewSet(Weighted{mustCreate(t, TypeRoll, nil), 1}, Weighted{mustCreate(t, TypeAdjacent, nil), 1})
	require.NoError(t, err)
	e, err := NewEvaluator(tinyCorpus(t), g, s, []rune("abc"))
	require.NoError(t, err)

	l, err := layout.Parse([]rune("abc"), g.Len(), "abc")
	require.NoError(t, err)
	b := e.Evaluate(l)
	assert.Equal(t, 0.0, b.Metrics[0].Raw)

	out := []float64{7, 7}
	e.SwapDelta(l, 0, 5, out)
	assert.Equal(t, 0.0, out[0])
	assert.Less(t, out[1], 0.0)
}

func TestNewEvaluator_Rejects(t *testing.T) {
	g := ortho(t)
	_, err := NewEvaluator(tinyCorpus(t), g, nil, []rune("abc"))
	require.ErrorIs(t, err, ErrEmptyMetricSet)

	_, err = NewEvaluator(tinyCorpus(t), g, adjacentSet(t, 1), []rune("aab"))
	require.ErrorIs(t, err, layout.ErrDuplicateChar)
}

func TestCheck(t *testing.T) {
	g := ortho(t)
	e, err := NewEvaluator(tinyCorpus(t), g, adjacentSet(t, 1), []rune("abc"))
	require.NoError(t, err)

	short, err := layout.Parse([]rune("abc"), 5, "abc")
	require.NoError(t, err)
	require.Error(t, e.Check(short))

	other, err := layout.Parse([]rune("abd"), g.Len(), "abd")
	require.NoError(t, err)
	require.Error(t, e.Check(other))
}

func randomCorpus(t *testing.T, rng *rand.Rand, letters []rune) *corpus.Corpus {
	t.Helper()
	tables := corpus.Tables{
		Unigrams:  map[string]float64{},
		Bigrams:   map[string]float64{},
		Skipgrams: map[string]float64{},
		Trigrams:  map[string]float64{},
	}
	pick := func() rune { return letters[rng.Intn(len(letters))] }
	for i := 0; i < 400; i++ {
		tables.Unigrams[string(pick())] += float64(rng.Intn(50))
		tables.Bigrams[string([]rune{pick(), pick()})] += float64(rng.Intn(50))
		tables.Skipgrams[string([]rune{pick(), pick()})] += float64(rng.Intn(50))
		tables.Trigrams[string([]rune{pick(), pick(), pick()})] += float64(rng.Intn(50))
	}
	c, err := corpus.New("random", tables)
	require.NoError(t, err)
	return c
}

func fullSet(t *testing.T) *Set {
	t.Helper()
	var items []Weighted
	for i, mt := range Types() {
		weight := i + 1
		if i%3 == 0 {
			weight = -weight
		}
		items = append(items, Weighted{mustCreate(t, mt, nil), weight})
	}
	items = append(items,
		Weighted{Metric: must(Create(TypeSFB, "sfb-repeats", map[string]any{"include_repeats": true})), Weight: 2},
		Weighted{Metric: must(Create(TypeDistance, "distance-squared", map[string]any{"exponent": 2})), Weight: 1},
		Weighted{Metric: must(Create(TypeRoll, "inroll", map[string]any{"direction": "inward"})), Weight: -4},
	)
	s, err := NewSet(items...)
	require.NoError(t, err)
	return s
}

func must(m Metric, err error) Metric {
	if err != nil {
		panic(err)
	}
	return m
}

func TestSwapDelta_MatchesFullEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	// the corpus has characters the alphabet lacks
	c := randomCorpus(t, rng, []rune("abcdefghijklmnopqrstuvwxyz"))
	alphabet := []rune("etaoinshrdlcumwfgypb")

	for _, name := range geometry.BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			g, err := geometry.Builtin(name)
			require.NoError(t, err)
			s := fullSet(t)
			e, err := NewEvaluator(c, g, s, alphabet)
			require.NoError(t, err)

			l, err := layout.Random(alphabet, g.Len(), rng)
			require.NoError(t, err)

			out := make([]float64, s.Len())
			for i := 0; i < 300; i++ {
				p, q := rng.Intn(g.Len()), rng.Intn(g.Len())
				before := e.Evaluate(l)
				delta := e.SwapDelta(l, p, q, out)

				l.SwapKeys(p, q)
				require.NoError(t, l.Validate())
				after := e.Evaluate(l)

				require.InDelta(t, after.Total-before.Total, delta, 1e-7, "swap %d,%d", p, q)
				for mi := range out {
					require.InDelta(t, after.Metrics[mi].Raw-before.Metrics[mi].Raw, out[mi], 1e-7,
						fmt.Sprintf("metric %s, swap %d,%d", after.Metrics[mi].Name, p, q))
				}
			}
		})
	}
}

func TestSwapDelta_LeavesLayoutAlone(t *testing.T) {
	g := ortho(t)
	e, err := NewEvaluator(tinyCorpus(t), g, adjacentSet(t, 1), []rune("abc"))
	require.NoError(t, err)

	l, err := layout.Parse([]rune("abc"), g.Len(), "abc")
	require.NoError(t, err)

	_ = e.SwapDelta(l, 0, 29, nil)
	assert.Equal(t, "abc", l.String()[:3])
	assert.Equal(t, 0.0, e.SwapDelta(l, 3, 4, nil))
	assert.Equal(t, 0.0, e.SwapDelta(l, 1, 1, nil))
}
