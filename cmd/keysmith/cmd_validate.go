package main

import (
	"errors"
	"fmt"

	"github.com/spboyer/keysmith/internal/config"
	"github.com/spboyer/keysmith/internal/orchestration"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <keysmith.yaml>",
		Short: "Check a config file without running it",
		Long: `Validate a config file against the run schema, then load its corpus,
geometry and metrics exactly as "keysmith run" would. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: validateCommandE,
	}
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(args[0])
	if err != nil {
		var schemaErr *config.SchemaError
		if errors.As(err, &schemaErr) {
			for _, p := range schemaErr.Problems {
				failure(out, "%s", p)
			}
			return fmt.Errorf("%s: %d schema problem(s)", args[0], len(schemaErr.Problems))
		}
		return err
	}
	success(out, "schema")

	problem, err := orchestration.Prepare(cfg)
	if err != nil {
		failure(out, "%v", err)
		return fmt.Errorf("%s is not runnable", args[0])
	}

	success(out, "corpus %s", problem.Corpus.Name())
	success(out, "geometry %s (%d keys)", problem.Geometry.Name(), problem.Geometry.Len())
	success(out, "alphabet of %d characters", len(problem.Alphabet))
	success(out, "%d metric(s)", problem.Evaluator.Set().Len())
	fmt.Fprintf(out, "\nFingerprint: %s\n", problem.Fingerprint) //nolint:errcheck
	return nil
}
