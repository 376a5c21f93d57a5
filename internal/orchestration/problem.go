package orchestration

import (
	"fmt"
	"time"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/fingerprint"
	"github.com/spboyer/keysmith/internal/geometry"
	"github.com/spboyer/keysmith/internal/layout"
	"github.com/spboyer/keysmith/internal/metrics"
	"github.com/spboyer/keysmith/internal/results"
)

// Problem is the read-only input shared by every run of a batch.
type Problem struct {
	Corpus      *corpus.Corpus
	Geometry    *geometry.Geometry
	Alphabet    []rune
	Evaluator   *metrics.Evaluator
	Schedule    anneal.Config
	Fingerprint string
}

// Prepare loads and checks everything cfg refers to. Any configuration
// problem is reported here, before a run could write output.
func Prepare(cfg *config.Config) (*Problem, error) {
	c, err := corpus.Load(cfg.Resolve(cfg.Corpus))
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	g, err := geometry.Resolve(cfg.Geometry, cfg.BaseDir())
	if err != nil {
		return nil, fmt.Errorf("loading geometry: %w", err)
	}

	alphabet := []rune(cfg.Alphabet)
	if len(alphabet) == 0 {
		alphabet = c.Alphabet()
	}
	if len(alphabet) > g.Len() {
		return nil, fmt.Errorf("%w: %d characters, %d keys on %s",
			anneal.ErrAlphabetTooLarge, len(alphabet), g.Len(), g.Name())
	}

	items := make([]metrics.Weighted, 0, len(cfg.Metrics))
	described := make([]fingerprint.Metric, 0, len(cfg.Metrics))
	for i, mc := range cfg.Metrics {
		m, err := metrics.Create(metrics.Type(mc.Kind), mc.Name, mc.Params)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", i+1, err)
		}
		items = append(items, metrics.Weighted{Metric: m, Weight: mc.Weight})
		described = append(described, fingerprint.Metric{
			Type:   string(m.Type()),
			Name:   m.Name(),
			Weight: mc.Weight,
			Params: mc.Params,
		})
	}
	set, err := metrics.NewSet(items...)
	if err != nil {
		return nil, err
	}

	eval, err := metrics.NewEvaluator(c, g, set, alphabet)
	if err != nil {
		return nil, err
	}

	schedule := cfg.Schedule()
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if schedule.SeedLayout != "" {
		if _, err := layout.Parse(alphabet, g.Len(), schedule.SeedLayout); err != nil {
			return nil, fmt.Errorf("seed layout: %w", err)
		}
	}

	fp, err := fingerprint.Of(fingerprint.Problem{
		Corpus:   c,
		Geometry: g,
		Alphabet: alphabet,
		Metrics:  described,
		Schedule: schedule,
	})
	if err != nil {
		return nil, err
	}

	return &Problem{
		Corpus:      c,
		Geometry:    g,
		Alphabet:    alphabet,
		Evaluator:   eval,
		Schedule:    schedule,
		Fingerprint: fp,
	}, nil
}

// Score evaluates a layout given in key order.
func (p *Problem) Score(keyOrder string) (*layout.Layout, metrics.Breakdown, error) {
	l, err := layout.Parse(p.Alphabet, p.Geometry.Len(), keyOrder)
	if err != nil {
		return nil, metrics.Breakdown{}, err
	}
	return p.score(l)
}

// ScoreAssignment evaluates a layout given as a character to key mapping,
// the form stored in result files.
func (p *Problem) ScoreAssignment(keys map[string]int) (*layout.Layout, metrics.Breakdown, error) {
	l, err := layout.FromAssignment(p.Alphabet, p.Geometry.Len(), keys)
	if err != nil {
		return nil, metrics.Breakdown{}, err
	}
	return p.score(l)
}

func (p *Problem) score(l *layout.Layout) (*layout.Layout, metrics.Breakdown, error) {
	if err := p.Evaluator.Check(l); err != nil {
		return nil, metrics.Breakdown{}, err
	}
	return l, p.Evaluator.Evaluate(l), nil
}

func (p *Problem) record(index int, seed int64, res *anneal.Result, started, finished time.Time) *results.RunResult {
	return &results.RunResult{
		ID:               fingerprint.RunID(p.Fingerprint, seed).String(),
		Index:            index,
		Seed:             seed,
		State:            res.State,
		Iterations:       res.Iterations,
		Accepted:         res.Accepted,
		FinalTemperature: res.Temperature,
		Corpus:           p.Corpus.Name(),
		Geometry:         p.Geometry.Name(),
		Layout: results.Layout{
			Keys:     res.Layout.Assignment(),
			KeyOrder: res.Layout.String(),
			Grid:     layout.Format(res.Layout, p.Geometry),
		},
		Breakdown:    res.Breakdown,
		InitialTotal: res.Initial.Total,
		Fingerprint:  p.Fingerprint,
		StartedAt:    started,
		FinishedAt:   finished,
	}
}
