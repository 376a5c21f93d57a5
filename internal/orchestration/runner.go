// Package orchestration runs batches of independent annealing runs and
// hands each result to a Sink.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/results"
	"github.com/spboyer/keysmith/internal/statistics"
	"github.com/spboyer/keysmith/internal/template"
	"golang.org/x/sync/errgroup"
)

// Runner coordinates the runs of one batch. The problem is shared
// read-only; every run owns its annealer, random source and layouts.
type Runner struct {
	problem   *Problem
	runs      int
	workers   int
	timeLimit time.Duration
	sink      Sink
	observer  ObserverFactory
	now       func() time.Time

	// outputName is the rendered output.name template.
	outputName string

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// ObserverFactory returns the per-iteration observer for a run, or nil.
// It is called from the run's own goroutine.
type ObserverFactory func(index int, seed int64) func(anneal.Progress)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventBatchStart    EventType = "batch_start"
	EventBatchComplete EventType = "batch_complete"
	EventRunStart      EventType = "run_start"
	EventRunComplete   EventType = "run_complete"
	EventRunFailed     EventType = "run_failed"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType EventType
	Run       int
	TotalRuns int
	Seed      int64
	State     anneal.State
	Total     float64
	Path      string
	Err       error
	Duration  time.Duration
}

// Outcome is what became of one run. Exactly one of Result and Err is
// set, except that a result the sink could not save carries both.
type Outcome struct {
	Index  int
	Seed   int64
	Result *results.RunResult
	Path   string
	Err    error
}

// Report is the outcome of a batch, in run order.
type Report struct {
	Fingerprint string
	Outcomes    []Outcome
	Summary     statistics.Summary
}

// Failed counts the runs that ended with an error.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSink replaces the result store configured by the output section.
func WithSink(s Sink) RunnerOption {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithObserverFactory installs a per-run annealing observer.
func WithObserverFactory(f ObserverFactory) RunnerOption {
	return func(r *Runner) {
		r.observer = f
	}
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner prepares cfg's problem. It returns an error, and nothing is
// written, when the configuration cannot produce a valid run.
func NewRunner(cfg *config.Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeLimit, err := cfg.TimeLimitDuration()
	if err != nil {
		return nil, err
	}
	problem, err := Prepare(cfg)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		problem:   problem,
		runs:      cfg.Runs,
		workers:   cfg.Workers,
		timeLimit: timeLimit,
		now:       time.Now,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}

	name, err := OutputName(cfg, problem, r.now())
	if err != nil {
		return nil, err
	}
	r.outputName = name

	if r.sink == nil {
		r.sink = results.NewStore(cfg.Resolve(cfg.Output.Dir), name,
			results.WithMaxAttempts(cfg.Output.MaxAttempts))
	}
	return r, nil
}

// OutputName renders cfg's output.name template for problem.
func OutputName(cfg *config.Config, problem *Problem, now time.Time) (string, error) {
	name, err := template.FileName(cfg.Output.Name, &template.Context{
		Corpus:      problem.Corpus.Name(),
		Geometry:    problem.Geometry.Name(),
		Fingerprint: problem.Fingerprint[:12],
		Seed:        problem.Schedule.Seed,
		Runs:        cfg.Runs,
		Date:        now.Format("20060102"),
	})
	if err != nil {
		return "", fmt.Errorf("output name: %w", err)
	}
	return name, nil
}

// Problem returns the prepared problem.
func (r *Runner) Problem() *Problem { return r.problem }

// OutputName returns the file name prefix of the batch's results.
func (r *Runner) OutputName() string { return r.outputName }

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every run of the batch on at most workers goroutines. A
// failed run is recorded in its Outcome and does not stop the others.
// The returned error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.notifyProgress(ProgressEvent{EventType: EventBatchStart, TotalRuns: r.runs})
	slog.Info("starting batch",
		"runs", r.runs,
		"workers", r.workers,
		"corpus", r.problem.Corpus.Name(),
		"geometry", r.problem.Geometry.Name(),
		"fingerprint", r.problem.Fingerprint)

	outcomes := make([]Outcome, r.runs)
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range r.runs {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, i)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	totals := make([]float64, 0, r.runs)
	for _, o := range outcomes {
		if o.Result != nil && o.Err == nil {
			totals = append(totals, o.Result.Breakdown.Total)
		}
	}
	report := &Report{
		Fingerprint: r.problem.Fingerprint,
		Outcomes:    outcomes,
		Summary:     statistics.Summarize(totals, r.problem.Schedule.Seed),
	}

	s := report.Summary
	slog.Info("batch finished",
		"runs", r.runs,
		"failed", report.Failed(),
		"mean", s.Mean,
		"min", s.Min,
		"max", s.Max,
		"ci_lower", s.CI.Lower,
		"ci_upper", s.CI.Upper)
	r.notifyProgress(ProgressEvent{EventType: EventBatchComplete, TotalRuns: r.runs})

	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return report, err
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, index int) Outcome {
	schedule := r.problem.Schedule
	schedule.Seed = anneal.DeriveSeed(r.problem.Schedule.Seed, uint64(index))
	out := Outcome{Index: index, Seed: schedule.Seed}

	r.notifyProgress(ProgressEvent{
		EventType: EventRunStart,
		Run:       index,
		TotalRuns: r.runs,
		Seed:      schedule.Seed,
	})

	if r.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeLimit)
		defer cancel()
	}

	var opts []anneal.Option
	if r.observer != nil {
		if fn := r.observer(index, schedule.Seed); fn != nil {
			opts = append(opts, anneal.WithObserver(fn))
		}
	}

	started := r.now()
	out.Err = func() error {
		a, err := anneal.New(r.problem.Evaluator, schedule, opts...)
		if err != nil {
			return err
		}
		res, err := a.Run(ctx)
		if err != nil {
			return err
		}
		out.Result = r.problem.record(index, schedule.Seed, res, started, r.now())
		path, err := r.sink.Save(out.Result)
		if err != nil {
			return fmt.Errorf("saving run %d: %w", index, err)
		}
		out.Path = path
		return nil
	}()
	elapsed := r.now().Sub(started)

	if out.Err != nil {
		slog.Error("run failed", "run", index, "seed", schedule.Seed, "error", out.Err)
		r.notifyProgress(ProgressEvent{
			EventType: EventRunFailed,
			Run:       index,
			TotalRuns: r.runs,
			Seed:      schedule.Seed,
			Err:       out.Err,
			Duration:  elapsed,
		})
		return out
	}

	slog.Info("run finished",
		"run", index,
		"seed", schedule.Seed,
		"state", out.Result.State,
		"iterations", out.Result.Iterations,
		"total", out.Result.Breakdown.Total,
		"path", out.Path)
	r.notifyProgress(ProgressEvent{
		EventType: EventRunComplete,
		Run:       index,
		TotalRuns: r.runs,
		Seed:      schedule.Seed,
		State:     out.Result.State,
		Total:     out.Result.Breakdown.Total,
		Path:      out.Path,
		Duration:  elapsed,
	})
	return out
}
