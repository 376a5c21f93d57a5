// Package statistics summarizes the totals of a batch of runs.
package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// Interval is a bootstrap confidence interval for a mean.
type Interval struct {
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Mean      float64 `json:"mean"`
	Level     float64 `json:"level"`
	Resamples int     `json:"resamples"`
}

// DefaultResamples is the number of bootstrap resamples.
const DefaultResamples = 10000

// Bootstrap computes a percentile bootstrap interval for the mean of
// values at the given confidence level, e.g. 0.95. With fewer than 2 values
// the interval collapses to the mean.
func Bootstrap(values []float64, level float64, rng *rand.Rand) Interval {
	n := len(values)
	m := mean(values)
	if n < 2 {
		return Interval{Lower: m, Upper: m, Mean: m, Level: level}
	}

	means := make([]float64, DefaultResamples)
	sample := make([]float64, n)
	for i := range means {
		for j := range sample {
			sample[j] = values[rng.Intn(n)]
		}
		means[i] = mean(sample)
	}
	sort.Float64s(means)

	alpha := 1.0 - level
	lo := int(math.Floor(alpha / 2.0 * DefaultResamples))
	hi := int(math.Floor((1.0 - alpha/2.0) * DefaultResamples))
	if hi >= DefaultResamples {
		hi = DefaultResamples - 1
	}

	return Interval{
		Lower:     means[lo],
		Upper:     means[hi],
		Mean:      m,
		Level:     level,
		Resamples: DefaultResamples,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
