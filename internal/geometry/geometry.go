// Package geometry describes the physical keyboard a layout is placed on:
// key positions, the finger and hand pressing each key, and the distances
// between keys. A Geometry is immutable once built.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoKeys             = errors.New("geometry: no keys")
	ErrDuplicatePosition  = errors.New("geometry: duplicate key position")
	ErrInvalidFinger      = errors.New("geometry: invalid finger")
	ErrHandMismatch       = errors.New("geometry: hand does not match finger")
	ErrUnknownGeometry    = errors.New("geometry: unknown geometry")
	ErrInvalidKeyEffort   = errors.New("geometry: key effort must be non-negative")
	ErrInvalidCoordinates = errors.New("geometry: key coordinates must be finite")
)

// Hand is the hand that presses a key.
type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	if h == Right {
		return "right"
	}
	return "left"
}

// Finger identifies one of the ten fingers, numbered left pinky (0) to
// right pinky (9).
type Finger int

const (
	LeftPinky Finger = iota
	LeftRing
	LeftMiddle
	LeftIndex
	LeftThumb
	RightThumb
	RightIndex
	RightMiddle
	RightRing
	RightPinky
)

var fingerNames = [...]string{
	"left-pinky", "left-ring", "left-middle", "left-index", "left-thumb",
	"right-thumb", "right-index", "right-middle", "right-ring", "right-pinky",
}

// ParseFinger maps names such as "left-index" to a Finger.
func ParseFinger(s string) (Finger, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range fingerNames {
		if n == s {
			return Finger(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFinger, s)
}

// Valid reports whether f is one of the ten fingers.
func (f Finger) Valid() bool { return f >= LeftPinky && f <= RightPinky }

func (f Finger) String() string {
	if !f.Valid() {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// Hand returns the hand the finger belongs to.
func (f Finger) Hand() Hand {
	if f >= RightThumb {
		return Right
	}
	return Left
}

// Reach is the finger's distance from the outside of its hand: 0 for a
// pinky, 4 for a thumb. Motion towards larger reach is inward.
func (f Finger) Reach() int {
	if f.Hand() == Right {
		return int(RightPinky - f)
	}
	return int(f)
}

func (f Finger) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Finger) UnmarshalText(b []byte) error {
	v, err := ParseFinger(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f *Finger) UnmarshalYAML(node *yaml.Node) error {
	return f.UnmarshalText([]byte(node.Value))
}

// Key describes one physical key.
type Key struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Row    int     `yaml:"row" json:"row"`
	Col    int     `yaml:"col" json:"col"`
	Finger Finger  `yaml:"finger" json:"finger"`
	Hand   Hand    `yaml:"-" json:"-"`
	Effort float64 `yaml:"effort,omitempty" json:"effort,omitempty"`
}

// Geometry is an ordered set of keys. Key indices are positions in Keys.
type Geometry struct {
	name string
	keys []Key
	dist []float64
}

// New validates keys and precomputes the distance matrix. Each key's Hand
// is derived from its finger.
func New(name string, keys []Key) (*Geometry, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	g := &Geometry{name: name, keys: make([]Key, len(keys))}
	type point struct{ x, y float64 }
	seen := make(map[point]int, len(keys))

	for i, k := range keys {
		if !k.Finger.Valid() {
			return nil, fmt.Errorf("%w: key %d has finger %d", ErrInvalidFinger, i, int(k.Finger))
		}
		if math.IsNaN(k.X) || math.IsNaN(k.Y) || math.IsInf(k.X, 0) || math.IsInf(k.Y, 0) {
			return nil, fmt.Errorf("%w: key %d", ErrInvalidCoordinates, i)
		}
		if k.Effort < 0 {
			return nil, fmt.Errorf("%w: key %d", ErrInvalidKeyEffort, i)
		}
		p := point{k.X, k.Y}
		if j, ok := seen[p]; ok {
			return nil, fmt.Errorf("%w: keys %d and %d at (%g, %g)", ErrDuplicatePosition, j, i, k.X, k.Y)
		}
		seen[p] = i
		k.Hand = k.Finger.Hand()
		g.keys[i] = k
	}

	n := len(keys)
	g.dist = make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.dist[i*n+j] = math.Hypot(g.keys[i].X-g.keys[j].X, g.keys[i].Y-g.keys[j].Y)
		}
	}

	return g, nil
}

// Name returns the geometry name.
func (g *Geometry) Name() string { return g.name }

// Len returns the number of keys.
func (g *Geometry) Len() int { return len(g.keys) }

// Key returns the i-th key.
func (g *Geometry) Key(i int) Key { return g.keys[i] }

// Keys returns a copy of all keys.
func (g *Geometry) Keys() []Key {
	out := make([]Key, len(g.keys))
	copy(out, g.keys)
	return out
}

// Distance returns the euclidean distance between keys i and j.
func (g *Geometry) Distance(i, j int) float64 { return g.dist[i*len(g.keys)+j] }

// SameFinger reports whether keys i and j are pressed by the same finger.
func (g *Geometry) SameFinger(i, j int) bool { return g.keys[i].Finger == g.keys[j].Finger }

// SameHand reports whether keys i and j are pressed by the same hand.
func (g *Geometry) SameHand(i, j int) bool { return g.keys[i].Hand == g.keys[j].Hand }

// Rows returns the number of rows spanned by the keys.
func (g *Geometry) Rows() int {
	rows := 0
	for _, k := range g.keys {
		if k.Row+1 > rows {
			rows = k.Row + 1
		}
	}
	return rows
}

// Cols returns the number of columns spanned by the keys.
func (g *Geometry) Cols() int {
	cols := 0
	for _, k := range g.keys {
		if k.Col+1 > cols {
			cols = k.Col + 1
		}
	}
	return cols
}
