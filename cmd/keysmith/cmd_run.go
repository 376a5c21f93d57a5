package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/orchestration"
	"github.com/spboyer/keysmith/internal/spinner"
	"github.com/spboyer/keysmith/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type runOptions struct {
	runs       int
	workers    int
	seed       int64
	iterations int
	strategy   string
	outputDir  string
	timeLimit  string
	logEvery   int
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <keysmith.yaml>",
		Short: "Optimize a layout",
		Long: `Run a batch of independent annealing runs from a config file.

Every run gets its own seed derived from the base seed and writes one
result file to the output directory. Runs never share state, so a failed
run does not affect the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommandE(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.runs, "runs", "n", 0, "Number of runs (overrides config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent runs (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base seed (overrides config)")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "Maximum iterations per run (overrides config)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Search strategy: anneal or greedy (overrides config)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for result files (overrides config)")
	cmd.Flags().StringVar(&opts.timeLimit, "time-limit", "", "Wall-clock limit per run, e.g. 30s (overrides config)")
	cmd.Flags().IntVar(&opts.logEvery, "log-every", utils.DefaultProgressInterval, "Iterations between debug progress lines")

	return cmd
}

// applyOverrides copies flags the user set onto cfg.
func (o *runOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("runs") {
		cfg.Runs = o.runs
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("seed") {
		cfg.Anneal.Seed = o.seed
	}
	if flags.Changed("iterations") {
		cfg.Anneal.MaxIterations = o.iterations
	}
	if flags.Changed("strategy") {
		cfg.Strategy = o.strategy
	}
	if flags.Changed("time-limit") {
		cfg.TimeLimit = o.timeLimit
	}
	if o.outputDir != "" {
		abs, err := filepath.Abs(o.outputDir)
		if err != nil {
			return fmt.Errorf("resolving output directory: %w", err)
		}
		cfg.Output.Dir = abs
	}
	return cfg.Validate()
}

func runCommandE(cmd *cobra.Command, configPath string, opts *runOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := opts.applyOverrides(cmd, cfg); err != nil {
		return err
	}

	runner, err := orchestration.NewRunner(cfg,
		orchestration.WithObserverFactory(func(index int, _ int64) func(anneal.Progress) {
			return utils.ProgressToSlog(index, opts.logEvery)
		}),
	)
	if err != nil {
		return err
	}

	p := runner.Problem()
	fmt.Fprintf(out, "Corpus:   %s\n", p.Corpus.Name())                                 //nolint:errcheck
	fmt.Fprintf(out, "Geometry: %s (%d keys)\n", p.Geometry.Name(), p.Geometry.Len())   //nolint:errcheck
	fmt.Fprintf(out, "Alphabet: %d characters\n", len(p.Alphabet))                      //nolint:errcheck
	fmt.Fprintf(out, "Strategy: %s\n", cfg.Strategy)                                    //nolint:errcheck
	fmt.Fprintf(out, "Runs:     %d on %d worker(s)\n", cfg.Runs, cfg.Workers)           //nolint:errcheck
	numbers.Fprintf(out, "Budget:   %d iterations per run\n", cfg.Anneal.MaxIterations) //nolint:errcheck
	fmt.Fprintf(out, "Output:   %s\n\n", cfg.Resolve(cfg.Output.Dir))                   //nolint:errcheck

	progress := &batchProgress{total: cfg.Runs}
	runner.OnProgress(progress.listener)
	if isTerminal(cmd.ErrOrStderr()) {
		stop := spinner.Start(cmd.ErrOrStderr(), progress.status)
		defer stop()
		runner.OnProgress(func(e orchestration.ProgressEvent) {
			if e.EventType == orchestration.EventBatchComplete {
				stop()
			}
		})
	} else {
		runner.OnProgress(progress.printer(out))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report, err := runner.Run(ctx)
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	if failed := report.Failed(); failed > 0 {
		return &RunFailureError{Failed: failed, Total: len(report.Outcomes)}
	}
	return nil
}

// batchProgress tracks finished runs for the status line.
type batchProgress struct {
	mu     sync.Mutex
	total  int
	done   int
	failed int
}

func (b *batchProgress) listener(e orchestration.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch e.EventType {
	case orchestration.EventRunComplete:
		b.done++
	case orchestration.EventRunFailed:
		b.done++
		b.failed++
	}
}

func (b *batchProgress) status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := fmt.Sprintf("annealing: %d/%d runs finished", b.done, b.total)
	if b.failed > 0 {
		s += fmt.Sprintf(", %d failed", b.failed)
	}
	return s
}

// printer reports each finished run on its own line, for non-terminal
// output.
func (b *batchProgress) printer(w io.Writer) orchestration.ProgressListener {
	var mu sync.Mutex
	return func(e orchestration.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch e.EventType {
		case orchestration.EventRunComplete:
			success(w, "[%d/%d] run %d %s total=%.4f (%v)", b.finished(), e.TotalRuns, e.Run, e.State, e.Total, e.Duration.Round(time.Millisecond))
		case orchestration.EventRunFailed:
			failure(w, "[%d/%d] run %d: %v", b.finished(), e.TotalRuns, e.Run, e.Err)
		}
	}
}

func (b *batchProgress) finished() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printReport(w io.Writer, report *orchestration.Report) {
	fmt.Fprintln(w) //nolint:errcheck
	heading(w, "RUNS")
	fmt.Fprintln(w) //nolint:errcheck

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padLeft("Run", 4),
		padLeft("Seed", 20),
		padRight("State", 10),
		padLeft("Iterations", 12),
		padLeft("Total", 10),
		"File")
	fmt.Fprintln(w, strings.Repeat("─", 76)) //nolint:errcheck
	for _, o := range report.Outcomes {
		if o.Result == nil {
			fmt.Fprintf(w, "%s  %s  ", padLeft(fmt.Sprint(o.Index), 4), padLeft(fmt.Sprint(o.Seed), 20)) //nolint:errcheck
			red.Fprintf(w, "failed: %v\n", o.Err)                                                        //nolint:errcheck
			continue
		}
		file := o.Path
		if o.Err != nil {
			file = red.Sprintf("not saved: %v", o.Err)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padLeft(fmt.Sprint(o.Index), 4),
			padLeft(fmt.Sprint(o.Seed), 20),
			padRight(string(o.Result.State), 10),
			padLeft(numbers.Sprintf("%d", o.Result.Iterations), 12),
			padLeft(fmt.Sprintf("%.4f", o.Result.Breakdown.Total), 10),
			file)
	}

	s := report.Summary
	fmt.Fprintln(w) //nolint:errcheck
	if s.N == 0 {
		warning(w, "no run produced a layout")
		return
	}
	fmt.Fprintf(w, "Completed:  %d of %d\n", s.N, len(report.Outcomes)) //nolint:errcheck
	fmt.Fprintf(w, "Mean total: %.4f\n", s.Mean)                        //nolint:errcheck
	fmt.Fprintf(w, "Std dev:    %.4f\n", s.StdDev)                      //nolint:errcheck
	fmt.Fprintf(w, "Range:      %.4f .. %.4f\n", s.Min, s.Max)          //nolint:errcheck
	if s.N > 1 {
		fmt.Fprintf(w, "%.0f%% CI:     [%.4f, %.4f]\n", s.CI.Level*100, s.CI.Lower, s.CI.Upper) //nolint:errcheck
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", report.Fingerprint) //nolint:errcheck
}
