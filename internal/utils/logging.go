package utils

import (
	"context"
	"log/slog"

	"github.com/spboyer/keysmith/internal/anneal"
)

// DefaultProgressInterval is how many iterations pass between progress
// log lines.
const DefaultProgressInterval = 10_000

// ProgressToSlog returns an annealing observer that logs every nth
// iteration of a run at debug level. It returns nil when debug logging is
// off so the annealer skips the call entirely.
func ProgressToSlog(run, every int) func(anneal.Progress) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	if every < 1 {
		every = DefaultProgressInterval
	}

	accepted := 0
	return func(p anneal.Progress) {
		if p.Accepted {
			accepted++
		}
		if (p.Iteration+1)%every != 0 {
			return
		}
		slog.Debug("annealing",
			"run", run,
			"iteration", p.Iteration+1,
			"temperature", p.Temperature,
			"current", p.Current,
			"best", p.Best,
			"accepted", accepted)
	}
}
