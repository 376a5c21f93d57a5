// Package spinner draws a single self-updating status line on a terminal.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Interval is the redraw period.
const Interval = 80 * time.Millisecond

// Start redraws status() next to an animated frame on w until the returned
// function is called, which clears the line. status is called from the
// spinner's goroutine and must be safe for that.
func Start(w io.Writer, status func() string) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		i, width := 0, 0
		ticker := time.NewTicker(Interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(cleared)
				return
			case <-ticker.C:
				line := frames[i%len(frames)] + " " + status()
				lw := runewidth.StringWidth(line)
				pad := ""
				if lw < width {
					pad = strings.Repeat(" ", width-lw)
				}
				fmt.Fprintf(w, "\r%s%s", line, pad) //nolint:errcheck
				width = max(width, lw)
				i++
			}
		}
	}()
	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
