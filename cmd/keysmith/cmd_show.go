package main

import (
	"fmt"
	"time"

	"github.com/spboyer/keysmith/internal/results"
	"github.com/spf13/cobra"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <result.json> [result.json ...]",
		Short: "Display saved run results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  showCommandE,
	}
}

func showCommandE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for i, path := range args {
		r, err := results.Load(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out) //nolint:errcheck
		}
		heading(out, path)
		fmt.Fprintln(out) //nolint:errcheck

		fmt.Fprintf(out, "Run:        %d (%s)\n", r.Index, r.ID)                                    //nolint:errcheck
		fmt.Fprintf(out, "Seed:       %d\n", r.Seed)                                                //nolint:errcheck
		fmt.Fprintf(out, "Corpus:     %s on %s\n", r.Corpus, r.Geometry)                            //nolint:errcheck
		fmt.Fprintf(out, "State:      %s\n", r.State)                                               //nolint:errcheck
		numbers.Fprintf(out, "Iterations: %d (%d accepted)\n", r.Iterations, r.Accepted)            //nolint:errcheck
		fmt.Fprintf(out, "Duration:   %v\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)) //nolint:errcheck
		fmt.Fprintf(out, "Improved:   %.4f -> %.4f\n\n", r.InitialTotal, r.Breakdown.Total)         //nolint:errcheck

		fmt.Fprint(out, r.Layout.Grid) //nolint:errcheck
		fmt.Fprintln(out)              //nolint:errcheck
		printBreakdown(out, r.Breakdown)
	}
	return nil
}
