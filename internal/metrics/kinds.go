package metrics

import (
	"math"

	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/geometry"
)

type base struct {
	name       string
	metricType Type
	kind       corpus.Kind
}

func (b base) Name() string      { return b.name }
func (b base) Type() Type        { return b.metricType }
func (b base) Kind() corpus.Kind { return b.kind }

// sameFinger costs 1 when both keys are pressed by the same finger.
type sameFinger struct {
	base
	includeRepeats bool
}

func (m *sameFinger) Cost(g *geometry.Geometry, keys []int) float64 {
	a, b := keys[0], keys[1]
	if a == b {
		return boolCost(m.includeRepeats)
	}
	return boolCost(g.SameFinger(a, b))
}

// adjacent costs 1 for distinct keys on the same row at most maxGap
// columns apart.
type adjacent struct {
	base
	maxGap int
}

func (m *adjacent) Cost(g *geometry.Geometry, keys []int) float64 {
	a, b := g.Key(keys[0]), g.Key(keys[1])
	if keys[0] == keys[1] || a.Row != b.Row {
		return 0
	}
	gap := a.Col - b.Col
	if gap < 0 {
		gap = -gap
	}
	return boolCost(gap <= m.maxGap)
}

// distance is the travel of a finger pressing two keys in a row.
type distance struct {
	base
	exponent float64
}

func (m *distance) Cost(g *geometry.Geometry, keys []int) float64 {
	a, b := keys[0], keys[1]
	if a == b || !g.SameFinger(a, b) {
		return 0
	}
	d := g.Distance(a, b)
	if m.exponent == 1 {
		return d
	}
	return math.Pow(d, m.exponent)
}

// RollDirection filters rolls by the direction the fingers travel.
type RollDirection string

const (
	RollAny RollDirection = "any"
	// RollInward moves from the pinky towards the thumb.
	RollInward  RollDirection = "inward"
	RollOutward RollDirection = "outward"
)

// roll costs 1 for a trigram where two consecutive keys are on one hand
// with different fingers and the remaining key is on the other hand.
type roll struct {
	base
	direction RollDirection
}

func (m *roll) Cost(g *geometry.Geometry, keys []int) float64 {
	k1, k2, k3 := g.Key(keys[0]), g.Key(keys[1]), g.Key(keys[2])

	var first, second geometry.Finger
	switch {
	case k1.Hand == k2.Hand && k2.Hand != k3.Hand:
		first, second = k1.Finger, k2.Finger
	case k1.Hand != k2.Hand && k2.Hand == k3.Hand:
		first, second = k2.Finger, k3.Finger
	default:
		return 0
	}
	if first == second {
		return 0
	}

	switch m.direction {
	case RollInward:
		return boolCost(second.Reach() > first.Reach())
	case RollOutward:
		return boolCost(second.Reach() < first.Reach())
	}
	return 1
}

// alternate costs 1 when every keystroke switches hands.
type alternate struct{ base }

func (m *alternate) Cost(g *geometry.Geometry, keys []int) float64 {
	return boolCost(!g.SameHand(keys[0], keys[1]) && !g.SameHand(keys[1], keys[2]))
}

// redirect costs 1 for a one-handed trigram on three fingers that changes
// direction halfway.
type redirect struct{ base }

func (m *redirect) Cost(g *geometry.Geometry, keys []int) float64 {
	k1, k2, k3 := g.Key(keys[0]), g.Key(keys[1]), g.Key(keys[2])
	if k1.Hand != k2.Hand || k2.Hand != k3.Hand {
		return 0
	}
	if k1.Finger == k2.Finger || k2.Finger == k3.Finger || k1.Finger == k3.Finger {
		return 0
	}
	in1 := k2.Finger.Reach() > k1.Finger.Reach()
	in2 := k3.Finger.Reach() > k2.Finger.Reach()
	return boolCost(in1 != in2)
}

// effort is the per-key effort of the geometry.
type effort struct{ base }

func (m *effort) Cost(g *geometry.Geometry, keys []int) float64 {
	return g.Key(keys[0]).Effort
}

func boolCost(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
