package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spboyer/keysmith/internal/metrics"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// numbers prints counts with digit grouping.
var numbers = message.NewPrinter(language.English)

// success prints a message in green with a checkmark prefix.
func success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ "+format+"\n", a...) //nolint:errcheck
}

func warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠ "+format+"\n", a...) //nolint:errcheck
}

func failure(w io.Writer, format string, a ...any) {
	red.Fprintf(w, "✗ "+format+"\n", a...) //nolint:errcheck
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, "═"+strings.Repeat("═", 54)) //nolint:errcheck
	bold.Fprintln(w, " "+title)                  //nolint:errcheck
	fmt.Fprintln(w, "═"+strings.Repeat("═", 54)) //nolint:errcheck
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s in width columns.
func padLeft(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return strings.Repeat(" ", width-sw) + s
}

// printBreakdown renders a score breakdown as a table.
func printBreakdown(w io.Writer, b metrics.Breakdown) {
	nameWidth := len("Metric")
	for _, m := range b.Metrics {
		nameWidth = max(nameWidth, runewidth.StringWidth(m.Name))
	}
	const (
		colType   = 10
		colNgram  = 9
		colNumber = 10
	)

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Metric", nameWidth),
		padRight("Type", colType),
		padRight("N-gram", colNgram),
		padLeft("Raw %", colNumber),
		padLeft("Weight", colNumber),
		padLeft("Weighted", colNumber))
	fmt.Fprintln(w, strings.Repeat("─", nameWidth+colType+colNgram+3*colNumber+10)) //nolint:errcheck
	for _, m := range b.Metrics {
		weighted := padLeft(fmt.Sprintf("%.4f", m.Weighted), colNumber)
		if m.Weight < 0 {
			weighted = cyan.Sprint(weighted)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(m.Name, nameWidth),
			padRight(string(m.Type), colType),
			padRight(m.Ngram, colNgram),
			padLeft(fmt.Sprintf("%.4f", m.Raw), colNumber),
			padLeft(fmt.Sprintf("%+d", m.Weight), colNumber),
			weighted)
	}
	fmt.Fprintf(w, "%s  %s\n", //nolint:errcheck
		padRight("Total", nameWidth+colType+colNgram+2*colNumber+8),
		bold.Sprint(padLeft(fmt.Sprintf("%.4f", b.Total), colNumber)))
}
