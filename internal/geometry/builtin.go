package geometry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spboyer/keysmith/internal/validation"
	"gopkg.in/yaml.v3"
)

// columnFingers is the conventional finger assignment of a 10-column block.
var columnFingers = [10]Finger{
	LeftPinky, LeftRing, LeftMiddle, LeftIndex, LeftIndex,
	RightIndex, RightIndex, RightMiddle, RightRing, RightPinky,
}

var builtins = map[string]func() []Key{
	"ortho-3x10": func() []Key {
		return grid([3]float64{0, 0, 0})
	},
	"ansi-3x10": func() []Key {
		return grid([3]float64{0, 0.25, 0.75})
	},
	"ortho-3x10-thumb": func() []Key {
		keys := grid([3]float64{0, 0, 0})
		keys = append(keys,
			Key{X: 4, Y: 3, Row: 3, Col: 4, Finger: LeftThumb, Effort: 1},
			Key{X: 5, Y: 3, Row: 3, Col: 5, Finger: RightThumb, Effort: 1},
		)
		return keys
	},
}

// grid builds a 3x10 block, row-major from the top row, with the given
// horizontal offset per row.
func grid(offsets [3]float64) []Key {
	keys := make([]Key, 0, 30)
	for row := 0; row < 3; row++ {
		for col := 0; col < 10; col++ {
			keys = append(keys, Key{
				X:      float64(col) + offsets[row],
				Y:      float64(row),
				Row:    row,
				Col:    col,
				Finger: columnFingers[col],
				Effort: defaultEffort(row, col),
			})
		}
	}
	return keys
}

// defaultEffort rates the home row lowest, the bottom row highest, and
// penalizes pinky columns and the inner index columns.
func defaultEffort(row, col int) float64 {
	effort := [3]float64{1.5, 1.0, 2.0}[row]
	switch col {
	case 0, 9:
		effort += 0.5
	case 4, 5:
		effort += 0.5
	}
	return effort
}

// BuiltinNames lists the built-in geometries, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a built-in geometry by name.
func Builtin(name string) (*Geometry, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (built-ins: %s)", ErrUnknownGeometry, name, strings.Join(BuiltinNames(), ", "))
	}
	return New(name, build())
}

// Resolve returns the built-in geometry called ref, or loads ref as a file
// path. Relative paths are resolved against baseDir.
func Resolve(ref, baseDir string) (*Geometry, error) {
	if _, ok := builtins[ref]; ok {
		return Builtin(ref)
	}
	path := ref
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	g, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q is neither a built-in nor a readable file", ErrUnknownGeometry, ref)
	}
	return g, err
}

type fileKey struct {
	X      float64  `yaml:"x"`
	Y      float64  `yaml:"y"`
	Row    int      `yaml:"row"`
	Col    int      `yaml:"col"`
	Finger Finger   `yaml:"finger"`
	Hand   string   `yaml:"hand,omitempty"`
	Effort *float64 `yaml:"effort,omitempty"`
}

type fileGeometry struct {
	Name string    `yaml:"name"`
	Keys []fileKey `yaml:"keys"`
}

// Load reads a YAML geometry file, validating it against the geometry schema.
func Load(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geometry: %w", err)
	}
	return Parse(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// Parse decodes a YAML geometry. defaultName is used when the document has
// no name.
func Parse(data []byte, defaultName string) (*Geometry, error) {
	if errs := validation.ValidateGeometryBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("geometry %s does not match schema:\n  %s", defaultName, strings.Join(errs, "\n  "))
	}

	var doc fileGeometry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}

	keys := make([]Key, 0, len(doc.Keys))
	for i, fk := range doc.Keys {
		if fk.Hand != "" && !strings.EqualFold(fk.Hand, fk.Finger.Hand().String()) {
			return nil, fmt.Errorf("%w: key %d is %s on the %s hand", ErrHandMismatch, i, fk.Finger, fk.Hand)
		}
		effort := 1.0
		if fk.Effort != nil {
			effort = *fk.Effort
		}
		keys = append(keys, Key{X: fk.X, Y: fk.Y, Row: fk.Row, Col: fk.Col, Finger: fk.Finger, Effort: effort})
	}

	name := doc.Name
	if name == "" {
		name = defaultName
	}
	return New(name, keys)
}
