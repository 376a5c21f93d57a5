package statistics

import (
	"math"
	"math/rand"
	"testing"
)

func seeded(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

func TestBootstrap_Empty(t *testing.T) {
	ci := Bootstrap(nil, 0.95, seeded(1))
	if ci.Mean != 0.0 || ci.Lower != 0.0 || ci.Upper != 0.0 {
		t.Errorf("expected zero interval for empty input, got %+v", ci)
	}
	if ci.Resamples != 0 {
		t.Errorf("expected 0 resamples for empty input, got %d", ci.Resamples)
	}
}

func TestBootstrap_SingleValue(t *testing.T) {
	ci := Bootstrap([]float64{-12.5}, 0.95, seeded(1))
	if ci.Mean != -12.5 || ci.Lower != -12.5 || ci.Upper != -12.5 {
		t.Errorf("expected degenerate interval for single value, got %+v", ci)
	}
}

func TestBootstrap_IdenticalValues(t *testing.T) {
	ci := Bootstrap([]float64{31.2, 31.2, 31.2, 31.2}, 0.95, seeded(42))
	if math.Abs(ci.Lower-31.2) > 1e-9 || math.Abs(ci.Upper-31.2) > 1e-9 {
		t.Errorf("expected [31.2, 31.2] for identical totals, got [%f, %f]", ci.Lower, ci.Upper)
	}
}

func TestBootstrap_ContainsMean(t *testing.T) {
	totals := []float64{-4, 2, 7, 11, 3, 5, -1, 8, 6, 9}
	ci := Bootstrap(totals, 0.95, seeded(42))

	if math.Abs(ci.Mean-5.0) > 1e-9 {
		t.Errorf("expected mean 5, got %f", ci.Mean)
	}
	if ci.Lower >= ci.Mean || ci.Upper <= ci.Mean {
		t.Errorf("interval [%f, %f] should strictly contain mean %f", ci.Lower, ci.Upper, ci.Mean)
	}
	if ci.Lower < -4 || ci.Upper > 11 {
		t.Errorf("interval should stay within the data range, got [%f, %f]", ci.Lower, ci.Upper)
	}
	if ci.Resamples != DefaultResamples {
		t.Errorf("expected %d resamples, got %d", DefaultResamples, ci.Resamples)
	}
}

func TestBootstrap_NarrowerAtHigherN(t *testing.T) {
	small := []float64{3, 5, 7}
	large := []float64{3, 4, 5, 6, 7, 3, 4, 5, 6, 7,
		3, 4, 5, 6, 7, 3, 4, 5, 6, 7}

	ciSmall := Bootstrap(small, 0.95, seeded(42))
	ciLarge := Bootstrap(large, 0.95, seeded(42))

	if ciLarge.Upper-ciLarge.Lower >= ciSmall.Upper-ciSmall.Lower {
		t.Errorf("larger sample should yield a narrower interval: small=%+v, large=%+v", ciSmall, ciLarge)
	}
}

func TestBootstrap_WiderAtHigherLevel(t *testing.T) {
	totals := []float64{1, 3, 5, 7, 9, 2, 4, 6, 8, 10}
	ci90 := Bootstrap(totals, 0.90, seeded(42))
	ci99 := Bootstrap(totals, 0.99, seeded(42))

	if ci99.Upper-ci99.Lower <= ci90.Upper-ci90.Lower {
		t.Errorf("99%% interval should be wider than 90%%: %+v vs %+v", ci90, ci99)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 3)
	if s.N != 8 || s.Min != 2 || s.Max != 9 || s.Mean != 5 {
		t.Fatalf("unexpected summary %+v", s)
	}
	// sample variance is 32/7
	if math.Abs(s.StdDev-math.Sqrt(32.0/7.0)) > 1e-12 {
		t.Errorf("std dev = %f", s.StdDev)
	}
	if s.CI.Level != 0.95 || s.CI.Lower > 5 || s.CI.Upper < 5 {
		t.Errorf("unexpected interval %+v", s.CI)
	}

	again := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 3)
	if again != s {
		t.Errorf("same seed should give the same summary: %+v vs %+v", s, again)
	}

	if empty := Summarize(nil, 1); empty.N != 0 || empty.CI.Resamples != 0 {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}
