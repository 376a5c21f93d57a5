package layout

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/keysmith/internal/geometry"
)

// Format renders the layout as a grid following the geometry's rows and
// columns. A wider gap separates the hands within a row.
func Format(l *Layout, g *geometry.Geometry) string {
	rows, cols := g.Rows(), g.Cols()
	cells := make([][]string, rows)
	hands := make([][]int, rows)
	for r := range cells {
		cells[r] = make([]string, cols)
		hands[r] = make([]int, cols)
		for c := range hands[r] {
			hands[r][c] = -1
		}
	}

	free := string(l.FreeMarker())
	width := 1
	for k := 0; k < g.Len() && k < l.KeyCount(); k++ {
		key := g.Key(k)
		label := free
		if c := l.CharAt(k); c != Free {
			label = displayRune(l.alphabet[c])
		}
		cells[key.Row][key.Col] = label
		hands[key.Row][key.Col] = int(key.Hand)
		if w := runewidth.StringWidth(label); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for r := range cells {
		var line strings.Builder
		for c := range cells[r] {
			if c > 0 {
				line.WriteString(" ")
				if hands[r][c] >= 0 && hands[r][c-1] >= 0 && hands[r][c] != hands[r][c-1] {
					line.WriteString("  ")
				}
			}
			line.WriteString(padRight(cells[r][c], width))
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func displayRune(r rune) string {
	switch r {
	case ' ':
		return "␣"
	case '\t':
		return "⇥"
	case '\n':
		return "⏎"
	}
	return string(r)
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
