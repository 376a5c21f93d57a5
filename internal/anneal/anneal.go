// Package anneal searches for a low-scoring layout with simulated annealing.
package anneal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/spboyer/keysmith/internal/layout"
	"github.com/spboyer/keysmith/internal/metrics"
)

var (
	ErrAlphabetTooLarge = errors.New("anneal: alphabet has more characters than the geometry has keys")
	ErrInvalidSchedule  = errors.New("anneal: invalid schedule")
)

// State is the annealer's lifecycle stage.
type State string

const (
	StateInitializing State = "initializing"
	StateAnnealing    State = "annealing"
	StateConverged    State = "converged"
	StateTimedOut     State = "timed_out"
)

// Terminal reports whether no further iterations will run.
func (s State) Terminal() bool { return s == StateConverged || s == StateTimedOut }

const (
	targetAcceptance    = 0.8
	acceptanceEpsilon   = 0.01
	maxCalibrationSteps = 100
	acceptanceWindow    = 20
	// ctxCheckInterval is how many iterations pass between context checks.
	ctxCheckInterval = 256
	eulerMascheroni  = 0.5772156649015329
	// minImprovement is the smallest drop in total a greedy step accepts.
	minImprovement = 1e-12
)

// resyncInterval is how many iterations pass between full re-evaluations
// of the running totals.
var resyncInterval = 1 << 14

// Strategy selects the search performed by Run.
type Strategy string

const (
	// StrategyAnneal is Metropolis simulated annealing.
	StrategyAnneal Strategy = "anneal"
	// StrategyGreedy is steepest descent: every step applies the swap with
	// the largest improvement until no swap improves the layout.
	StrategyGreedy Strategy = "greedy"
)

// IntervalRange bounds the cooling interval when it adapts to the
// acceptance rate.
type IntervalRange struct {
	Min int
	Max int
}

// Config is the annealing schedule.
type Config struct {
	// Strategy defaults to StrategyAnneal. The temperature settings are
	// ignored by StrategyGreedy.
	Strategy Strategy
	// InitialTemperature of zero calibrates the temperature from the
	// starting layout.
	InitialTemperature float64
	// MinTemperature ends the search once the temperature drops below it.
	MinTemperature float64
	// CoolingRate multiplies the temperature every CoolingInterval iterations.
	CoolingRate     float64
	CoolingInterval int
	// AdaptiveInterval, when set, lets the cooling interval grow while
	// proposals are still being accepted and shrink once they are not.
	AdaptiveInterval *IntervalRange
	MaxIterations    int
	// StallLimit stops the search once the stall counter reaches it. A
	// rejected proposal adds one, an accepted move that does not lower the
	// total takes one off, and an improvement resets it. Zero disables the
	// stop; a negative value uses ceil(n(ln n + γ) + 0.5) for n keys.
	StallLimit int
	Seed       int64
	// SeedLayout is an optional starting layout, in key order.
	SeedLayout string
}

// Validate checks the schedule.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidSchedule, c.MaxIterations)
	}
	switch c.Strategy {
	case "", StrategyAnneal:
	case StrategyGreedy:
		return nil
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidSchedule, c.Strategy)
	}
	switch {
	case !(c.CoolingRate > 0 && c.CoolingRate <= 1):
		return fmt.Errorf("%w: cooling rate must be in (0, 1], got %g", ErrInvalidSchedule, c.CoolingRate)
	case c.InitialTemperature < 0 || math.IsNaN(c.InitialTemperature) || math.IsInf(c.InitialTemperature, 0):
		return fmt.Errorf("%w: initial temperature must be a non-negative number, got %g", ErrInvalidSchedule, c.InitialTemperature)
	case c.MinTemperature < 0 || math.IsNaN(c.MinTemperature):
		return fmt.Errorf("%w: min temperature must be non-negative, got %g", ErrInvalidSchedule, c.MinTemperature)
	case c.CoolingInterval < 0:
		return fmt.Errorf("%w: cooling interval must be positive, got %d", ErrInvalidSchedule, c.CoolingInterval)
	}
	if r := c.AdaptiveInterval; r != nil {
		if r.Min < 1 || r.Max < r.Min {
			return fmt.Errorf("%w: adaptive interval needs 1 <= min <= max, got [%d, %d]", ErrInvalidSchedule, r.Min, r.Max)
		}
	}
	return nil
}

// Progress is reported to the observer after every iteration. Layout is
// the annealer's working layout and must not be retained or modified.
type Progress struct {
	Iteration   int
	Temperature float64
	Current     float64
	Best        float64
	Accepted    bool
	Layout      *layout.Layout
}

// Result is the outcome of a search.
type Result struct {
	State State
	// Layout is the best layout seen.
	Layout    *layout.Layout
	Breakdown metrics.Breakdown
	// Initial is the breakdown of the starting layout.
	Initial     metrics.Breakdown
	Iterations  int
	Temperature float64
	Accepted    int
}

type Option func(*Annealer)

// WithObserver installs a callback invoked synchronously on every iteration.
func WithObserver(fn func(Progress)) Option {
	return func(a *Annealer) {
		a.observer = fn
	}
}

// Annealer runs one search. It owns its random source and scratch buffers
// and is not safe for concurrent use; run several Annealers instead.
type Annealer struct {
	eval     *metrics.Evaluator
	cfg      Config
	rng      *rand.Rand
	observer func(Progress)
	state    State
}

// New validates cfg against the evaluator. Nothing is computed until Run.
func New(e *metrics.Evaluator, cfg Config, opts ...Option) (*Annealer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n, k := len(e.Alphabet()), e.Geometry().Len(); n > k {
		return nil, fmt.Errorf("%w: %d characters, %d keys", ErrAlphabetTooLarge, n, k)
	}
	if cfg.CoolingInterval == 0 {
		cfg.CoolingInterval = 1
	}
	a := &Annealer{
		eval:  e,
		cfg:   cfg,
		rng:   NewRand(cfg.Seed),
		state: StateInitializing,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// State returns the current lifecycle stage.
func (a *Annealer) State() State { return a.state }

func (a *Annealer) initialLayout() (*layout.Layout, error) {
	alphabet := a.eval.Alphabet()
	keys := a.eval.Geometry().Len()
	if a.cfg.SeedLayout != "" {
		return layout.Parse(alphabet, keys, a.cfg.SeedLayout)
	}
	return layout.Random(alphabet, keys, a.rng)
}

// Run searches with the configured strategy until it converges, the
// iteration budget runs out, or ctx ends. A deadline on ctx ends the search as StateTimedOut with the
// best layout so far; cancellation returns the context's error.
func (a *Annealer) Run(ctx context.Context) (*Result, error) {
	if a.state != StateInitializing {
		return nil, errors.New("anneal: annealer has already run")
	}

	cur, err := a.initialLayout()
	if err != nil {
		return nil, fmt.Errorf("initial layout: %w", err)
	}
	initial := a.eval.Evaluate(cur)
	best := cur.Clone()
	curTotal, bestTotal := initial.Total, initial.Total

	keys := cur.KeyCount()
	swaps := candidateSwaps(cur)

	if a.cfg.Strategy == StrategyGreedy {
		return a.descend(ctx, cur, initial, swaps)
	}

	temp := a.cfg.InitialTemperature
	if temp == 0 {
		temp = a.calibrateTemperature(cur)
	}

	stallLimit := a.cfg.StallLimit
	if stallLimit < 0 {
		stallLimit = autoStallLimit(keys)
	}

	interval := float64(a.cfg.CoolingInterval)
	if r := a.cfg.AdaptiveInterval; r != nil {
		interval = math.Min(math.Max(interval, float64(r.Min)), float64(r.Max))
	}

	a.state = StateAnnealing
	scratch := make([]float64, a.eval.Set().Len())
	window := make([]bool, 0, acceptanceWindow)
	var (
		iter            int
		accepted        int
		stalled         int
		sinceCooling    int
		lastImprovement int
	)

	for {
		if swaps == 0 {
			a.state = StateConverged
			break
		}
		if iter >= a.cfg.MaxIterations {
			a.state = StateTimedOut
			break
		}
		if iter%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					a.state = StateTimedOut
					break
				}
				return nil, err
			}
		}
		if temp < a.cfg.MinTemperature {
			a.state = StateConverged
			break
		}

		p, q := a.propose(cur, keys)
		delta := a.eval.SwapDelta(cur, p, q, scratch)
		ok := delta <= 0 || a.rng.Float64() < math.Exp(-delta/temp)
		if ok {
			cur.SwapKeys(p, q)
			curTotal += delta
			accepted++
			if curTotal < bestTotal {
				best.CopyFrom(cur)
				bestTotal = curTotal
				lastImprovement = iter
			}
		}
		stalled = nextStall(stalled, ok, delta)
		if (iter+1)%resyncInterval == 0 {
			curTotal = a.eval.Evaluate(cur).Total
			bestTotal = a.eval.Evaluate(best).Total
		}

		if len(window) == acceptanceWindow {
			window = window[1:]
		}
		window = append(window, ok)

		if a.observer != nil {
			a.observer(Progress{
				Iteration:   iter,
				Temperature: temp,
				Current:     curTotal,
				Best:        bestTotal,
				Accepted:    ok,
				Layout:      cur,
			})
		}
		iter++

		if stallLimit > 0 && stalled >= stallLimit {
			a.state = StateConverged
			break
		}

		sinceCooling++
		if float64(sinceCooling) >= interval {
			sinceCooling = 0
			temp *= a.cfg.CoolingRate
			if r := a.cfg.AdaptiveInterval; r != nil {
				if acceptanceRate(window) > 0.1 || float64(iter-lastImprovement) < interval {
					interval = math.Min(interval*1.1, float64(r.Max))
				} else {
					interval = math.Max(interval*0.9, float64(r.Min))
				}
			}
		}
	}

	return &Result{
		State:       a.state,
		Layout:      best,
		Breakdown:   a.eval.Evaluate(best),
		Initial:     initial,
		Iterations:  iter,
		Temperature: temp,
		Accepted:    accepted,
	}, nil
}

// autoStallLimit is the expected number of draws needed to see each of n
// keys at least once.
func autoStallLimit(n int) int {
	f := float64(n)
	return int(math.Ceil(f*(math.Log(f)+eulerMascheroni) + 0.5))
}

func nextStall(stalled int, accepted bool, delta float64) int {
	switch {
	case !accepted:
		return stalled + 1
	case delta < 0:
		return 0
	case stalled > 0:
		return stalled - 1
	}
	return 0
}

// descend runs the greedy strategy from cur. An iteration is one applied
// swap.
func (a *Annealer) descend(ctx context.Context, cur *layout.Layout, initial metrics.Breakdown, swaps int) (*Result, error) {
	a.state = StateAnnealing
	keys := cur.KeyCount()
	scratch := make([]float64, a.eval.Set().Len())
	curTotal := initial.Total
	iter := 0

	for {
		if swaps == 0 {
			a.state = StateConverged
			break
		}
		if iter >= a.cfg.MaxIterations {
			a.state = StateTimedOut
			break
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				a.state = StateTimedOut
				break
			}
			return nil, err
		}

		bestP, bestQ, bestDelta := -1, -1, -minImprovement
		for p := 0; p < keys; p++ {
			for q := p + 1; q < keys; q++ {
				if cur.CharAt(p) == layout.Free && cur.CharAt(q) == layout.Free {
					continue
				}
				if d := a.eval.SwapDelta(cur, p, q, scratch); d < bestDelta {
					bestP, bestQ, bestDelta = p, q, d
				}
			}
		}
		if bestP < 0 {
			a.state = StateConverged
			break
		}

		cur.SwapKeys(bestP, bestQ)
		curTotal += bestDelta
		if a.observer != nil {
			a.observer(Progress{
				Iteration: iter,
				Current:   curTotal,
				Best:      curTotal,
				Accepted:  true,
				Layout:    cur,
			})
		}
		iter++
	}

	return &Result{
		State:      a.state,
		Layout:     cur,
		Breakdown:  a.eval.Evaluate(cur),
		Initial:    initial,
		Iterations: iter,
		Accepted:   iter,
	}, nil
}

// propose draws two distinct keys, at least one of them holding a
// character, uniformly among all such pairs.
func (a *Annealer) propose(l *layout.Layout, keys int) (int, int) {
	for {
		p, q := a.rng.Intn(keys), a.rng.Intn(keys)
		if p == q {
			continue
		}
		if l.CharAt(p) != layout.Free || l.CharAt(q) != layout.Free {
			return p, q
		}
	}
}

// candidateSwaps counts the unordered key pairs a proposal can draw.
func candidateSwaps(l *layout.Layout) int {
	k, free := l.KeyCount(), l.KeyCount()-l.Len()
	return k*(k-1)/2 - free*(free-1)/2
}

// calibrateTemperature finds the temperature at which uphill swaps from l
// are accepted with probability targetAcceptance on average.
func (a *Annealer) calibrateTemperature(l *layout.Layout) float64 {
	var uphill []float64
	keys := l.KeyCount()
	for p := 0; p < keys; p++ {
		for q := p + 1; q < keys; q++ {
			if l.CharAt(p) == layout.Free && l.CharAt(q) == layout.Free {
				continue
			}
			if d := a.eval.SwapDelta(l, p, q, nil); d > 1e-9 {
				uphill = append(uphill, d)
			}
		}
	}
	if len(uphill) == 0 {
		return 1
	}

	temp := 0.0
	for _, d := range uphill {
		temp += d
	}
	temp /= float64(len(uphill))

	for step := 0; step < maxCalibrationSteps; step++ {
		sum := 0.0
		for _, d := range uphill {
			sum += math.Exp(-d / temp)
		}
		p := sum / float64(len(uphill))
		if math.Abs(p-targetAcceptance) <= acceptanceEpsilon {
			break
		}
		if p <= 0 {
			temp *= 2
			continue
		}
		temp *= math.Log(p) / math.Log(targetAcceptance)
	}
	return temp
}

func acceptanceRate(window []bool) float64 {
	if len(window) == 0 {
		return 0
	}
	n := 0
	for _, ok := range window {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(window))
}
