package orchestration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/metrics"
	"github.com/spboyer/keysmith/internal/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testCorpus = `{
  "name": "tiny",
  "unigrams": {"a": 30, "b": 20, "c": 15, "d": 10, "e": 25},
  "bigrams": {"ab": 10, "ba": 5, "ac": 1, "de": 7, "ed": 3, "ce": 4},
  "trigrams": {"abc": 3, "cde": 2, "eda": 1}
}`

func writeConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.json"), []byte(testCorpus), 0o644))
	path := filepath.Join(dir, "keysmith.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

const baseConfig = `
corpus: tiny.json
metrics:
  - kind: sfb
    weight: 10
  - kind: adjacent
    weight: 2
  - kind: roll
    weight: -1
anneal:
  initial_temperature: 1
  cooling_rate: 0.95
  cooling_interval: 10
  max_iterations: 500
  seed: 7
runs: 4
workers: 2
output:
  dir: out
  name: tiny
`

func TestNewRunner_ConfigErrorsWriteNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "unknown metric",
			body: "corpus: tiny.json\nmetrics:\n  - kind: nonsense\n    weight: 1\n",
			want: metrics.ErrUnknownMetric,
		},
		{
			name: "alphabet larger than geometry",
			body: "corpus: tiny.json\nalphabet: \"abcdefghijklmnopqrstuvwxyz,./;'\"\nmetrics:\n  - kind: sfb\n    weight: 1\n",
			want: anneal.ErrAlphabetTooLarge,
		},
		{
			name: "duplicate metric names",
			body: "corpus: tiny.json\nmetrics:\n  - kind: sfb\n    weight: 1\n  - kind: same-finger-bigram\n    name: sfb\n    weight: 2\n",
			want: metrics.ErrDuplicateName,
		},
		{
			name: "missing corpus file",
			body: "corpus: missing.json\nmetrics:\n  - kind: sfb\n    weight: 1\n",
			want: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeConfig(t, tt.body)
			_, err := NewRunner(cfg)
			require.ErrorIs(t, err, tt.want)
			assert.NoDirExists(t, cfg.Resolve(cfg.Output.Dir))
		})
	}
}

func TestNewRunner_BadSeedLayout(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	cfg.Anneal.SeedLayout = "ab"
	_, err := NewRunner(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed layout")
}

func TestRun_SavesEveryRun(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	var mu sync.Mutex
	saved := map[int]*results.RunResult{}
	sink.EXPECT().Save(gomock.Any()).Times(4).DoAndReturn(func(r *results.RunResult) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		saved[r.Index] = r
		return fmt.Sprintf("run-%d.json", r.Index), nil
	})

	runner, err := NewRunner(cfg, WithSink(sink))
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 4)
	assert.Zero(t, report.Failed())
	assert.Equal(t, 4, report.Summary.N)
	assert.Equal(t, runner.Problem().Fingerprint, report.Fingerprint)

	seeds := map[int64]bool{}
	for i, o := range report.Outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, i, o.Index)
		assert.Equal(t, anneal.DeriveSeed(7, uint64(i)), o.Seed)
		assert.Equal(t, fmt.Sprintf("run-%d.json", i), o.Path)
		assert.Same(t, saved[i], o.Result)
		assert.True(t, o.Result.State.Terminal())
		assert.LessOrEqual(t, o.Result.Breakdown.Total, o.Result.InitialTotal+1e-9)
		assert.Equal(t, "tiny", o.Result.Corpus)
		assert.Equal(t, "ortho-3x10", o.Result.Geometry)
		assert.Len(t, o.Result.Layout.Keys, 5)
		seeds[o.Seed] = true
	}
	assert.Len(t, seeds, 4, "every run gets its own seed")
}

func TestRun_GreedyStrategy(t *testing.T) {
	cfg := writeConfig(t, "strategy: greedy\n"+baseConfig)
	annealed, err := Prepare(writeConfig(t, baseConfig))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Save(gomock.Any()).Times(4).Return("saved.json", nil)

	runner, err := NewRunner(cfg, WithSink(sink))
	require.NoError(t, err)
	p := runner.Problem()
	assert.Equal(t, anneal.StrategyGreedy, p.Schedule.Strategy)
	assert.NotEqual(t, annealed.Fingerprint, p.Fingerprint)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Failed())
	for _, o := range report.Outcomes {
		assert.Equal(t, anneal.StateConverged, o.Result.State)
		assert.Equal(t, o.Result.Iterations, o.Result.Accepted)
		assert.Zero(t, o.Result.FinalTemperature)
		assert.LessOrEqual(t, o.Result.Breakdown.Total, o.Result.InitialTotal)

		l, _, err := p.ScoreAssignment(o.Result.Layout.Keys)
		require.NoError(t, err)
		for a := 0; a < l.KeyCount(); a++ {
			for b := a + 1; b < l.KeyCount(); b++ {
				require.GreaterOrEqual(t, p.Evaluator.SwapDelta(l, a, b, nil), -1e-12)
			}
		}
	}
}

func TestRun_SinkFailureDoesNotStopSiblings(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	var calls atomic.Int32
	sink.EXPECT().Save(gomock.Any()).Times(4).DoAndReturn(func(r *results.RunResult) (string, error) {
		if calls.Add(1) == 1 {
			return "", results.ErrNamesExhausted
		}
		return "ok.json", nil
	})

	runner, err := NewRunner(cfg, WithSink(sink))
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 3, report.Summary.N)

	for _, o := range report.Outcomes {
		require.NotNil(t, o.Result, "the annealing itself succeeded")
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, results.ErrNamesExhausted)
			assert.Empty(t, o.Path)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := writeConfig(t, baseConfig)

	layouts := func() []string {
		ctrl := gomock.NewController(t)
		sink := NewMockSink(ctrl)
		sink.EXPECT().Save(gomock.Any()).AnyTimes().Return("x.json", nil)
		runner, err := NewRunner(cfg, WithSink(sink))
		require.NoError(t, err)
		report, err := runner.Run(context.Background())
		require.NoError(t, err)
		var out []string
		for _, o := range report.Outcomes {
			out = append(out, o.Result.Layout.KeyOrder)
		}
		return out
	}

	assert.Equal(t, layouts(), layouts())
}

func TestRun_WritesFilesToStore(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Failed())

	store := results.NewStore(cfg.Resolve("out"), "tiny")
	files, err := store.List()
	require.NoError(t, err)
	assert.Len(t, files, 4)

	for _, o := range report.Outcomes {
		loaded, err := results.Load(o.Path)
		require.NoError(t, err)
		assert.Equal(t, o.Result.ID, loaded.ID)
		assert.Equal(t, o.Result.Layout.KeyOrder, loaded.Layout.KeyOrder)
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	runner, err := NewRunner(cfg, WithSink(sink))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, report.Failed())
	for _, o := range report.Outcomes {
		assert.True(t, errors.Is(o.Err, context.Canceled))
		assert.Nil(t, o.Result)
	}
}

func TestRun_TimeLimitEndsRunsAsTimedOut(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	cfg.TimeLimit = "1ns"
	cfg.Anneal.MaxIterations = 50_000_000
	cfg.Anneal.CoolingRate = 1
	noStall := 0
	cfg.Anneal.StallLimit = &noStall

	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Save(gomock.Any()).Times(4).Return("x.json", nil)

	runner, err := NewRunner(cfg, WithSink(sink))
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	for _, o := range report.Outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, anneal.StateTimedOut, o.Result.State)
	}
}

func TestRun_ObserverAndProgressEvents(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Save(gomock.Any()).AnyTimes().Return("x.json", nil)

	var iterations [4]atomic.Int64
	factory := func(index int, seed int64) func(anneal.Progress) {
		assert.Equal(t, anneal.DeriveSeed(7, uint64(index)), seed)
		return func(p anneal.Progress) {
			iterations[index].Add(1)
			assert.LessOrEqual(t, p.Best, p.Current+1e-9)
		}
	}

	runner, err := NewRunner(cfg, WithSink(sink), WithObserverFactory(factory))
	require.NoError(t, err)

	var mu sync.Mutex
	counts := map[EventType]int{}
	runner.OnProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.EventType]++
	})

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, counts[EventBatchStart])
	assert.Equal(t, 1, counts[EventBatchComplete])
	assert.Equal(t, 4, counts[EventRunStart])
	assert.Equal(t, 4, counts[EventRunComplete])
	assert.Zero(t, counts[EventRunFailed])
	for i, o := range report.Outcomes {
		assert.Equal(t, int64(o.Result.Iterations), iterations[i].Load())
	}
}

func TestProblem_Score(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	p, err := Prepare(cfg)
	require.NoError(t, err)

	assert.Equal(t, []rune("abcde"), p.Alphabet)

	l, b, err := p.Score("abcde")
	require.NoError(t, err)
	assert.Equal(t, 5, l.Len())
	assert.Len(t, b.Metrics, 3)
	assert.Equal(t, p.Evaluator.Evaluate(l).Total, b.Total)

	_, _, err = p.Score("abc")
	assert.Error(t, err)
}

func TestProblem_ScoreStoredResultWithUnderscore(t *testing.T) {
	cfg := writeConfig(t, strings.Replace(baseConfig, "corpus: tiny.json", "corpus: under.json", 1))
	corpus := `{"name": "under", "unigrams": {"a": 5, "_": 3, "b": 2}, "bigrams": {"a_": 6, "_b": 4, "ab": 2}}`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.BaseDir(), "under.json"), []byte(corpus), 0o644))
	cfg.Runs = 1

	runner, err := NewRunner(cfg)
	require.NoError(t, err)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Failed())

	stored, err := results.Load(report.Outcomes[0].Path)
	require.NoError(t, err)
	assert.Contains(t, stored.Layout.KeyOrder, "·")

	p := runner.Problem()
	fromKeys, b1, err := p.ScoreAssignment(stored.Layout.Keys)
	require.NoError(t, err)
	fromOrder, b2, err := p.Score(stored.Layout.KeyOrder)
	require.NoError(t, err)
	assert.Equal(t, fromKeys.String(), fromOrder.String())
	assert.InDelta(t, stored.Breakdown.Total, b1.Total, 1e-9)
	assert.InDelta(t, stored.Breakdown.Total, b2.Total, 1e-9)

	_, _, err = p.ScoreAssignment(map[string]int{"a": 0})
	assert.Error(t, err)
}

func TestPrepare_FingerprintIgnoresSeed(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	a, err := Prepare(cfg)
	require.NoError(t, err)

	cfg.Anneal.Seed = 99
	b, err := Prepare(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)

	cfg.Metrics[0].Weight = 11
	c, err := Prepare(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestNewRunner_OutputNameTemplate(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	cfg.Output.Name = "{{.Corpus}}-{{.Geometry}}-s{{.Seed}}"
	runner, err := NewRunner(cfg)
	require.NoError(t, err)
	assert.Equal(t, "tiny-ortho-3x10-s7", runner.OutputName())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	for _, o := range report.Outcomes {
		assert.Contains(t, filepath.Base(o.Path), "tiny-ortho-3x10-s7-")
	}

	cfg.Output.Name = "{{.Model}}"
	_, err = NewRunner(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output name")
}

func TestNewRunner_Clock(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	cfg.Output.Name = "{{.Corpus}}-{{.Date}}"
	cfg.Runs = 1
	fixed := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Save(gomock.Any()).Return("saved.json", nil)

	runner, err := NewRunner(cfg, WithSink(sink), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, "tiny-20260102", runner.OutputName())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	r := report.Outcomes[0].Result
	assert.Equal(t, fixed, r.StartedAt)
	assert.Equal(t, fixed, r.FinishedAt)
}
