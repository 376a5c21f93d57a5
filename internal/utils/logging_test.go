package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useLogger(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(old)
	})

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestProgressToSlogDebugDisabled(t *testing.T) {
	useLogger(t, slog.LevelInfo)
	assert.Nil(t, ProgressToSlog(0, 10))
}

func TestProgressToSlogDebugEnabled(t *testing.T) {
	buf := useLogger(t, slog.LevelDebug)

	observe := ProgressToSlog(3, 4)
	require.NotNil(t, observe)
	for i := range 10 {
		observe(anneal.Progress{
			Iteration:   i,
			Temperature: 0.5,
			Current:     float64(20 - i),
			Best:        float64(20 - i),
			Accepted:    i%2 == 0,
		})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "annealing", entry["msg"])
	assert.Equal(t, float64(3), entry["run"])
	assert.Equal(t, float64(8), entry["iteration"])
	assert.Equal(t, float64(4), entry["accepted"])
	assert.Equal(t, float64(13), entry["best"])
}

func TestProgressToSlogDefaultInterval(t *testing.T) {
	buf := useLogger(t, slog.LevelDebug)

	observe := ProgressToSlog(0, 0)
	for i := range DefaultProgressInterval - 1 {
		observe(anneal.Progress{Iteration: i})
	}
	assert.Zero(t, buf.Len())
	observe(anneal.Progress{Iteration: DefaultProgressInterval - 1})
	assert.NotZero(t, buf.Len())
}
