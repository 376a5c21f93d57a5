package main

import (
	"fmt"
	"strings"

	"github.com/spboyer/keysmith/internal/geometry"
	"github.com/spf13/cobra"
)

func newGeometriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "geometries [name|file.yaml ...]",
		Short: "List built-in key geometries or describe geometry files",
		Long: `Without arguments, list the built-in geometries. With arguments, print
the finger assignment of each named geometry or geometry file.`,
		RunE: geometriesCommandE,
	}
}

func geometriesCommandE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		fmt.Fprintf(out, "%s  %s  %s\n", padRight("Name", 18), padLeft("Keys", 5), "Rows x Cols") //nolint:errcheck
		fmt.Fprintln(out, strings.Repeat("─", 38))                                                //nolint:errcheck
		for _, name := range geometry.BuiltinNames() {
			g, err := geometry.Builtin(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s  %d x %d\n", padRight(name, 18), padLeft(fmt.Sprint(g.Len()), 5), g.Rows(), g.Cols()) //nolint:errcheck
		}
		return nil
	}

	for i, ref := range args {
		g, err := geometry.Resolve(ref, ".")
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out) //nolint:errcheck
		}
		fmt.Fprintf(out, "%s (%d keys)\n\n", g.Name(), g.Len()) //nolint:errcheck
		fmt.Fprint(out, fingerGrid(g))                          //nolint:errcheck
	}
	return nil
}

// fingerGrid draws each key's finger at its row and column, e.g. "LI" for
// the left index finger.
func fingerGrid(g *geometry.Geometry) string {
	rows, cols := g.Rows(), g.Cols()
	cells := make([][]string, rows)
	for r := range cells {
		cells[r] = make([]string, cols)
	}
	for _, k := range g.Keys() {
		cells[k.Row][k.Col] = fingerAbbrev(k.Finger)
	}

	const width = 2
	var b strings.Builder
	for _, row := range cells {
		parts := make([]string, cols)
		for c, cell := range row {
			if cell == "" {
				cell = "·"
			}
			parts[c] = padRight(cell, width)
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, " "), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func fingerAbbrev(f geometry.Finger) string {
	var b strings.Builder
	for _, part := range strings.Split(f.String(), "-") {
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
		}
	}
	return b.String()
}
