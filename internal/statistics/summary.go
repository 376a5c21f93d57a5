package statistics

import (
	"math"
	"math/rand"
)

// Summary describes the spread of final totals across a batch. It does not
// rank the runs.
type Summary struct {
	N      int      `json:"n"`
	Mean   float64  `json:"mean"`
	StdDev float64  `json:"std_dev"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	CI     Interval `json:"ci"`
}

// Summarize computes a Summary with a 95% bootstrap interval. The
// resampling source is seeded so the same totals always summarize alike.
func Summarize(totals []float64, seed int64) Summary {
	s := Summary{N: len(totals)}
	if len(totals) == 0 {
		return s
	}

	s.Mean = mean(totals)
	s.Min, s.Max = totals[0], totals[0]
	sumSq := 0.0
	for _, v := range totals {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		d := v - s.Mean
		sumSq += d * d
	}
	if len(totals) > 1 {
		// sample standard deviation (Bessel's correction)
		s.StdDev = math.Sqrt(sumSq / float64(len(totals)-1))
	}
	s.CI = Bootstrap(totals, 0.95, rand.New(rand.NewSource(seed)))
	return s
}
