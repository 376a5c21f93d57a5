// Package corpus holds the immutable n-gram frequency model a layout is
// scored against.
package corpus

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

var (
	// ErrEmptyCorpus is returned when a corpus carries no n-gram mass at all.
	ErrEmptyCorpus = errors.New("corpus: no n-gram frequencies")

	// ErrInvalidCount is returned for negative, NaN or infinite counts.
	ErrInvalidCount = errors.New("corpus: invalid n-gram count")

	// ErrInvalidNgram is returned when an n-gram's length doesn't match its table.
	ErrInvalidNgram = errors.New("corpus: invalid n-gram")
)

// Kind identifies one of the n-gram tables of a corpus.
type Kind int

const (
	Unigram Kind = iota
	Bigram
	// Skipgram holds pairs of characters separated by exactly one other character.
	Skipgram
	Trigram

	numKinds = 4
)

// Kinds lists every table kind, in table order.
var Kinds = []Kind{Unigram, Bigram, Skipgram, Trigram}

// Order returns the number of characters in an n-gram of this kind.
func (k Kind) Order() int {
	switch k {
	case Unigram:
		return 1
	case Bigram, Skipgram:
		return 2
	case Trigram:
		return 3
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case Unigram:
		return "unigram"
	case Bigram:
		return "bigram"
	case Skipgram:
		return "skipgram"
	case Trigram:
		return "trigram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a table name ("bigram", "bigrams", ...) to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "unigram", "unigrams", "1":
		return Unigram, nil
	case "bigram", "bigrams", "2":
		return Bigram, nil
	case "skipgram", "skipgrams":
		return Skipgram, nil
	case "trigram", "trigrams", "3":
		return Trigram, nil
	}
	return 0, fmt.Errorf("corpus: unknown n-gram kind %q", s)
}

// Tables is the raw input a Corpus is built from.
type Tables struct {
	Unigrams  map[string]float64 `json:"unigrams,omitempty"`
	Bigrams   map[string]float64 `json:"bigrams,omitempty"`
	Skipgrams map[string]float64 `json:"skipgrams,omitempty"`
	Trigrams  map[string]float64 `json:"trigrams,omitempty"`
}

func (t *Tables) table(k Kind) map[string]float64 {
	switch k {
	case Unigram:
		return t.Unigrams
	case Bigram:
		return t.Bigrams
	case Skipgram:
		return t.Skipgrams
	case Trigram:
		return t.Trigrams
	}
	return nil
}

// Ngram is a single entry of a table.
type Ngram struct {
	Chars []rune
	Count float64
}

// Corpus is a read-only set of n-gram frequency tables. It is safe for
// concurrent use once built.
type Corpus struct {
	name     string
	entries  [numKinds][]Ngram
	lookup   [numKinds]map[string]float64
	totals   [numKinds]float64
	alphabet []rune
}

// New validates the tables and builds a Corpus. Zero counts are dropped.
func New(name string, tables Tables) (*Corpus, error) {
	c := &Corpus{name: name}
	seen := map[rune]struct{}{}
	grand := 0.0

	for _, kind := range Kinds {
		src := tables.table(kind)
		lookup := make(map[string]float64, len(src))

		keys := make([]string, 0, len(src))
		for k := range src {
			keys = append(keys, k)
		}
		// sorted so that every consumer sums in the same order
		sort.Strings(keys)

		for _, k := range keys {
			count := src[k]
			if count < 0 || math.IsNaN(count) || math.IsInf(count, 0) {
				return nil, fmt.Errorf("%w: %s %q has count %v", ErrInvalidCount, kind, k, count)
			}
			if !utf8.ValidString(k) || utf8.RuneCountInString(k) != kind.Order() {
				return nil, fmt.Errorf("%w: %q is not a %s", ErrInvalidNgram, k, kind)
			}
			if count == 0 {
				continue
			}
			chars := []rune(k)
			for _, r := range chars {
				seen[r] = struct{}{}
			}
			lookup[k] = count
			c.entries[kind] = append(c.entries[kind], Ngram{Chars: chars, Count: count})
			c.totals[kind] += count
		}
		c.lookup[kind] = lookup
		grand += c.totals[kind]
	}

	if grand == 0 {
		return nil, ErrEmptyCorpus
	}

	c.alphabet = make([]rune, 0, len(seen))
	for r := range seen {
		c.alphabet = append(c.alphabet, r)
	}
	sort.Slice(c.alphabet, func(i, j int) bool { return c.alphabet[i] < c.alphabet[j] })

	return c, nil
}

// Name returns the corpus name.
func (c *Corpus) Name() string { return c.name }

// Frequency returns the count of the given n-gram, or zero if unseen.
func (c *Corpus) Frequency(kind Kind, ngram string) float64 {
	if kind < 0 || int(kind) >= numKinds {
		return 0
	}
	return c.lookup[kind][ngram]
}

// Total returns the summed mass of a table.
func (c *Corpus) Total(kind Kind) float64 {
	if kind < 0 || int(kind) >= numKinds {
		return 0
	}
	return c.totals[kind]
}

// Entries returns the table's n-grams sorted by their string form. The
// returned slice is shared and must not be modified.
func (c *Corpus) Entries(kind Kind) []Ngram {
	if kind < 0 || int(kind) >= numKinds {
		return nil
	}
	return c.entries[kind]
}

// Alphabet returns every character appearing in any table, sorted.
func (c *Corpus) Alphabet() []rune {
	out := make([]rune, len(c.alphabet))
	copy(out, c.alphabet)
	return out
}
