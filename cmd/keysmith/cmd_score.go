package main

import (
	"fmt"
	"strings"

	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/layout"
	"github.com/spboyer/keysmith/internal/metrics"
	"github.com/spboyer/keysmith/internal/orchestration"
	"github.com/spboyer/keysmith/internal/results"
	"github.com/spf13/cobra"
)

func newScoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "score <keysmith.yaml> <layout|result.json>",
		Short: "Score a layout against a config's metrics",
		Long: `Score a layout with the corpus, geometry and metrics of a config file.

The layout is either a string of characters in key order, with '_' (or any
character outside the alphabet) for a free key, or a result file written
by "keysmith run". Scoring a result
under a different config compares layouts across metric sets.`,
		Args: cobra.ExactArgs(2),
		RunE: scoreCommandE,
	}
}

func scoreCommandE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	problem, err := orchestration.Prepare(cfg)
	if err != nil {
		return err
	}

	var (
		l         *layout.Layout
		breakdown metrics.Breakdown
	)
	if strings.HasSuffix(args[1], ".json") {
		var r *results.RunResult
		if r, err = results.Load(args[1]); err != nil {
			return err
		}
		l, breakdown, err = problem.ScoreAssignment(r.Layout.Keys)
	} else {
		l, breakdown, err = problem.Score(args[1])
	}
	if err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}

	fmt.Fprintf(out, "%s on %s\n\n", problem.Corpus.Name(), problem.Geometry.Name()) //nolint:errcheck
	fmt.Fprint(out, layout.Format(l, problem.Geometry))                              //nolint:errcheck
	fmt.Fprintln(out)                                                                //nolint:errcheck
	printBreakdown(out, breakdown)
	return nil
}
