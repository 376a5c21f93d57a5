package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keysmith",
		Short: "Keysmith - corpus-driven keyboard layout optimizer",
		Long: `Keysmith searches for keyboard layouts that minimize a weighted set of
typing-effort metrics measured over a text corpus.

Each run anneals a layout independently and writes its result to its own
file, so batches can run in parallel without coordination.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newScoreCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newGeometriesCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newCollectCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
