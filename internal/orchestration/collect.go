package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/layout"
	"github.com/spboyer/keysmith/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Sample is the score of one uniformly random layout.
type Sample struct {
	Index     int
	Layout    string
	Breakdown metrics.Breakdown
}

// Collect scores n uniformly random layouts on at most workers goroutines.
// Sample i draws from stream i of seed, so the samples do not depend on
// the number of workers.
func (p *Problem) Collect(ctx context.Context, n, workers int, seed int64) ([]Sample, error) {
	if n < 1 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	workers = max(1, min(workers, n))

	slog.Info("collecting samples", "count", n, "workers", workers, "fingerprint", p.Fingerprint)

	out := make([]Sample, n)
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				rng := anneal.NewRand(anneal.DeriveSeed(seed, uint64(i)))
				l, err := layout.Random(p.Alphabet, p.Geometry.Len(), rng)
				if err != nil {
					return err
				}
				out[i] = Sample{Index: i, Layout: l.String(), Breakdown: p.Evaluator.Evaluate(l)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SampleTable lays samples out as CSV: the layout, each metric's raw
// value in set order, then the weighted total.
func (p *Problem) SampleTable(samples []Sample) ([]string, [][]string) {
	set := p.Evaluator.Set()
	header := make([]string, 0, set.Len()+2)
	header = append(header, "layout")
	for i := range set.Len() {
		header = append(header, set.At(i).Metric.Name())
	}
	header = append(header, "total")

	rows := make([][]string, len(samples))
	for i, s := range samples {
		row := make([]string, 0, len(header))
		row = append(row, s.Layout)
		for _, v := range s.Breakdown.Raw() {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		row = append(row, strconv.FormatFloat(s.Breakdown.Total, 'f', 6, 64))
		rows[i] = row
	}
	return header, rows
}
