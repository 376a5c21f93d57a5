package orchestration

import "github.com/spboyer/keysmith/internal/results"

//go:generate go tool mockgen -destination=mock_sink_test.go -package=orchestration . Sink

// Sink persists finished runs. Save is called concurrently from every
// worker and returns where the result was written.
type Sink interface {
	Save(r *results.RunResult) (string, error)
}

var _ Sink = (*results.Store)(nil)
