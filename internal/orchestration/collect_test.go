package orchestration

import (
	"context"
	"strconv"
	"testing"

	"github.com/spboyer/keysmith/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_ScoresRandomLayouts(t *testing.T) {
	p, err := Prepare(writeConfig(t, baseConfig))
	require.NoError(t, err)

	samples, err := p.Collect(context.Background(), 25, 3, 11)
	require.NoError(t, err)
	require.Len(t, samples, 25)

	distinct := map[string]bool{}
	for i, s := range samples {
		assert.Equal(t, i, s.Index)
		l, err := layout.Parse(p.Alphabet, p.Geometry.Len(), s.Layout)
		require.NoError(t, err)
		assert.Equal(t, p.Evaluator.Evaluate(l), s.Breakdown)
		distinct[s.Layout] = true
	}
	assert.Greater(t, len(distinct), 1)
}

func TestCollect_IndependentOfWorkers(t *testing.T) {
	p, err := Prepare(writeConfig(t, baseConfig))
	require.NoError(t, err)

	one, err := p.Collect(context.Background(), 12, 1, 5)
	require.NoError(t, err)
	four, err := p.Collect(context.Background(), 12, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, one, four)

	other, err := p.Collect(context.Background(), 12, 4, 6)
	require.NoError(t, err)
	assert.NotEqual(t, one, other)
}

func TestCollect_Errors(t *testing.T) {
	p, err := Prepare(writeConfig(t, baseConfig))
	require.NoError(t, err)

	_, err = p.Collect(context.Background(), 0, 2, 1)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Collect(ctx, 10, 2, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSampleTable(t *testing.T) {
	p, err := Prepare(writeConfig(t, baseConfig))
	require.NoError(t, err)
	samples, err := p.Collect(context.Background(), 3, 2, 1)
	require.NoError(t, err)

	header, rows := p.SampleTable(samples)
	assert.Equal(t, []string{"layout", "sfb", "adjacent", "roll", "total"}, header)
	require.Len(t, rows, 3)
	for i, row := range rows {
		require.Len(t, row, len(header))
		assert.Equal(t, samples[i].Layout, row[0])
		sfb, err := strconv.ParseFloat(row[1], 64)
		require.NoError(t, err)
		assert.InDelta(t, samples[i].Breakdown.Metrics[0].Raw, sfb, 1e-6)
		total, err := strconv.ParseFloat(row[4], 64)
		require.NoError(t, err)
		assert.InDelta(t, samples[i].Breakdown.Total, total, 1e-6)
	}
}
