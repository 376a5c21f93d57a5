package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/orchestration"
	"github.com/spboyer/keysmith/internal/results"
	"github.com/spboyer/keysmith/internal/statistics"
	"github.com/spf13/cobra"
)

const defaultSampleCount = 1000

type collectOptions struct {
	count     int
	workers   int
	seed      int64
	outputDir string
}

func newCollectCommand() *cobra.Command {
	opts := &collectOptions{}
	cmd := &cobra.Command{
		Use:   "collect <keysmith.yaml>",
		Short: "Score random layouts into a CSV table",
		Long: `Score uniformly random layouts with the corpus, geometry and metrics of a
config file and write one CSV row per layout: the layout in key order, each
metric's raw value and the weighted total.

The table shows how the metrics are distributed and correlated before any
optimization. It is written next to run results as <name>-samples-<suffix>.csv.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return collectCommandE(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.count, "count", "n", defaultSampleCount, "Number of random layouts to score")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base seed (default from config)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for the table (overrides config)")

	return cmd
}

func collectCommandE(cmd *cobra.Command, configPath string, opts *collectOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Anneal.Seed = opts.seed
	}
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.workers
	}
	if workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", workers)
	}
	dir := cfg.Resolve(cfg.Output.Dir)
	if opts.outputDir != "" {
		if dir, err = filepath.Abs(opts.outputDir); err != nil {
			return fmt.Errorf("resolving output directory: %w", err)
		}
	}

	problem, err := orchestration.Prepare(cfg)
	if err != nil {
		return err
	}
	name, err := orchestration.OutputName(cfg, problem, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	samples, err := problem.Collect(ctx, opts.count, workers, cfg.Anneal.Seed)
	if err != nil {
		return fmt.Errorf("collecting samples: %w", err)
	}

	header, rows := problem.SampleTable(samples)
	store := results.NewStore(dir, name+"-samples", results.WithMaxAttempts(cfg.Output.MaxAttempts))
	path, err := store.SaveTable(header, rows)
	if err != nil {
		return fmt.Errorf("saving samples: %w", err)
	}

	numbers.Fprintf(out, "Scored %d random layouts of %d characters on %s in %v\n\n", //nolint:errcheck
		len(samples), len(problem.Alphabet), problem.Geometry.Name(), time.Since(start).Round(time.Millisecond))
	printSampleSummary(out, problem, samples, cfg.Anneal.Seed)
	fmt.Fprintln(out) //nolint:errcheck
	success(out, "wrote %s", path)
	return nil
}

func printSampleSummary(w io.Writer, problem *orchestration.Problem, samples []orchestration.Sample, seed int64) {
	set := problem.Evaluator.Set()
	columns := make([][]float64, set.Len()+1)
	for _, s := range samples {
		for i, v := range s.Breakdown.Raw() {
			columns[i] = append(columns[i], v)
		}
		columns[set.Len()] = append(columns[set.Len()], s.Breakdown.Total)
	}

	const colName, colNumber = 16, 10
	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Metric", colName),
		padLeft("Mean", colNumber),
		padLeft("Std dev", colNumber),
		padLeft("Min", colNumber),
		padLeft("Max", colNumber))
	fmt.Fprintln(w, strings.Repeat("─", colName+4*(colNumber+2))) //nolint:errcheck
	for i, col := range columns {
		label := "Total"
		if i < set.Len() {
			label = set.At(i).Metric.Name()
		}
		s := statistics.Summarize(col, seed)
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(label, colName),
			padLeft(fmt.Sprintf("%.4f", s.Mean), colNumber),
			padLeft(fmt.Sprintf("%.4f", s.StdDev), colNumber),
			padLeft(fmt.Sprintf("%.4f", s.Min), colNumber),
			padLeft(fmt.Sprintf("%.4f", s.Max), colNumber))
	}
}
