// Package metrics defines the typing-effort metrics a layout is scored on
// and the evaluator that turns a layout into a weighted score.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/geometry"
)

var (
	ErrEmptyMetricSet = errors.New("metrics: metric set is empty")
	ErrUnknownMetric  = errors.New("metrics: unknown metric")
	ErrDuplicateName  = errors.New("metrics: duplicate metric name")
)

type Type string

const (
	TypeSFB       Type = "sfb"
	TypeSFS       Type = "sfs"
	TypeAdjacent  Type = "adjacent"
	TypeDistance  Type = "distance"
	TypeRoll      Type = "roll"
	TypeAlternate Type = "alternate"
	TypeRedirect  Type = "redirect"
	TypeEffort    Type = "effort"
)

// aliases are the long-form metric names accepted in configs.
var aliases = map[Type]Type{
	"adjacent-pair-cost":   TypeAdjacent,
	"same-finger-bigram":   TypeSFB,
	"same-finger-skipgram": TypeSFS,
}

// Types lists the registered metric types, sorted.
func Types() []Type {
	types := []Type{TypeSFB, TypeSFS, TypeAdjacent, TypeDistance, TypeRoll, TypeAlternate, TypeRedirect, TypeEffort}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Metric is a pure cost function over the keys of one n-gram. keys has
// Kind().Order() entries.
type Metric interface {
	// Name identifies the metric in a breakdown.
	Name() string

	// Type returns the metric type.
	Type() Type

	// Kind is the corpus table the metric consumes.
	Kind() corpus.Kind

	// Cost returns the cost of typing the given keys in order.
	Cost(g *geometry.Geometry, keys []int) float64
}

// Create builds a metric from the registry. An empty name defaults to the
// metric type.
func Create(metricType Type, name string, params map[string]any) (Metric, error) {
	if canonical, ok := aliases[metricType]; ok {
		metricType = canonical
	}
	if name == "" {
		name = string(metricType)
	}

	switch metricType {
	case TypeSFB, TypeSFS:
		v := struct {
			IncludeRepeats bool `mapstructure:"include_repeats"`
		}{}
		if err := decodeParams(metricType, params, &v); err != nil {
			return nil, err
		}
		kind := corpus.Bigram
		if metricType == TypeSFS {
			kind = corpus.Skipgram
		}
		return &sameFinger{base: base{name, metricType, kind}, includeRepeats: v.IncludeRepeats}, nil
	case TypeAdjacent:
		v := struct {
			MaxGap int `mapstructure:"max_gap"`
		}{MaxGap: 1}
		if err := decodeParams(metricType, params, &v); err != nil {
			return nil, err
		}
		if v.MaxGap < 1 {
			return nil, fmt.Errorf("metric %s: max_gap must be at least 1, got %d", name, v.MaxGap)
		}
		return &adjacent{base: base{name, metricType, corpus.Bigram}, maxGap: v.MaxGap}, nil
	case TypeDistance:
		v := struct {
			Exponent float64 `mapstructure:"exponent"`
		}{Exponent: 1}
		if err := decodeParams(metricType, params, &v); err != nil {
			return nil, err
		}
		if v.Exponent <= 0 {
			return nil, fmt.Errorf("metric %s: exponent must be positive, got %g", name, v.Exponent)
		}
		return &distance{base: base{name, metricType, corpus.Bigram}, exponent: v.Exponent}, nil
	case TypeRoll:
		v := struct {
			Direction string `mapstructure:"direction"`
		}{Direction: string(RollAny)}
		if err := decodeParams(metricType, params, &v); err != nil {
			return nil, err
		}
		dir := RollDirection(strings.ToLower(v.Direction))
		switch dir {
		case RollAny, RollInward, RollOutward:
		default:
			return nil, fmt.Errorf("metric %s: direction must be any, inward or outward, got %q", name, v.Direction)
		}
		return &roll{base: base{name, metricType, corpus.Trigram}, direction: dir}, nil
	case TypeAlternate:
		if err := decodeParams(metricType, params, &struct{}{}); err != nil {
			return nil, err
		}
		return &alternate{base{name, metricType, corpus.Trigram}}, nil
	case TypeRedirect:
		if err := decodeParams(metricType, params, &struct{}{}); err != nil {
			return nil, err
		}
		return &redirect{base{name, metricType, corpus.Trigram}}, nil
	case TypeEffort:
		if err := decodeParams(metricType, params, &struct{}{}); err != nil {
			return nil, err
		}
		return &effort{base{name, metricType, corpus.Unigram}}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownMetric, metricType)
	}
}

func decodeParams(metricType Type, params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	var md mapstructure.Metadata
	if err := mapstructure.DecodeMetadata(params, out, &md); err != nil {
		return fmt.Errorf("metric %s params: %w", metricType, err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return fmt.Errorf("metric %s does not take params: %s", metricType, strings.Join(md.Unused, ", "))
	}
	return nil
}

// Weighted pairs a metric with its signed weight. Negative weights reward
// what the metric measures.
type Weighted struct {
	Metric
	Weight int
}

// Set is an ordered, non-empty list of weighted metrics.
type Set struct {
	items []Weighted
}

// NewSet validates the metric list. Names must be unique.
func NewSet(items ...Weighted) (*Set, error) {
	if len(items) == 0 {
		return nil, ErrEmptyMetricSet
	}
	seen := make(map[string]struct{}, len(items))
	for _, w := range items {
		if _, dup := seen[w.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, w.Name())
		}
		seen[w.Name()] = struct{}{}
	}
	s := &Set{items: make([]Weighted, len(items))}
	copy(s.items, items)
	return s, nil
}

// Len returns the number of metrics.
func (s *Set) Len() int { return len(s.items) }

// At returns the i-th weighted metric.
func (s *Set) At(i int) Weighted { return s.items[i] }

// Weights returns the signed weights in set order.
func (s *Set) Weights() []int {
	out := make([]int, len(s.items))
	for i, w := range s.items {
		out[i] = w.Weight
	}
	return out
}
