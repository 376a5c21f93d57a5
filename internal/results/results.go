// Package results persists one JSON file per finished run, and CSV tables
// of sampled scores. Files are created exclusively so that any number of
// concurrent runs, in this process or others, can share an output
// directory.
package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/metrics"
)

// ErrNamesExhausted is returned when every attempted file name was taken.
var ErrNamesExhausted = errors.New("results: no unused file name")

const (
	DefaultMaxAttempts = 16
	DefaultName        = "layout"
	suffixLength       = 12
)

// Layout is the stored form of a layout.
type Layout struct {
	// Keys maps each character to its key index.
	Keys map[string]int `json:"keys"`
	// KeyOrder lists the characters in key order, free keys as '_' unless
	// the alphabet contains it.
	KeyOrder string `json:"key_order"`
	// Grid is the layout rendered on its geometry.
	Grid string `json:"grid"`
}

// RunResult is the outcome of one annealing run.
type RunResult struct {
	ID               string            `json:"id"`
	Index            int               `json:"index"`
	Seed             int64             `json:"seed"`
	State            anneal.State      `json:"state"`
	Iterations       int               `json:"iterations"`
	Accepted         int               `json:"accepted"`
	FinalTemperature float64           `json:"final_temperature"`
	Corpus           string            `json:"corpus"`
	Geometry         string            `json:"geometry"`
	Layout           Layout            `json:"layout"`
	Breakdown        metrics.Breakdown `json:"breakdown"`
	InitialTotal     float64           `json:"initial_total"`
	Fingerprint      string            `json:"fingerprint"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

// Store writes results as <dir>/<name>-<suffix>.json and tables as
// <dir>/<name>-<suffix>.csv.
type Store struct {
	dir         string
	name        string
	maxAttempts int
	suffix      func() string
}

type StoreOption func(*Store)

// WithMaxAttempts bounds how many names are tried per result.
func WithMaxAttempts(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithSuffix replaces the random suffix generator.
func WithSuffix(fn func() string) StoreOption {
	return func(s *Store) {
		s.suffix = fn
	}
}

// NewStore creates a store. An empty name uses DefaultName.
func NewStore(dir, name string, opts ...StoreOption) *Store {
	if name == "" {
		name = DefaultName
	}
	s := &Store{
		dir:         dir,
		name:        name,
		maxAttempts: DefaultMaxAttempts,
		suffix:      randomSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}

// Save writes r under a fresh name and returns its path. A name that
// already exists is never overwritten; another suffix is drawn instead.
func (s *Store) Save(r *RunResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	return s.create("json", data)
}

// SaveTable writes a CSV table with a header row under a fresh name and
// returns its path.
func (s *Store) SaveTable(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("encoding table: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("encoding table: %w", err)
	}
	return s.create("csv", buf.Bytes())
}

func (s *Store) create(ext string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.%s", s.name, s.suffix(), ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating result file: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()       //nolint:errcheck
			os.Remove(path) //nolint:errcheck
			return "", fmt.Errorf("writing result file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path) //nolint:errcheck
			return "", fmt.Errorf("closing result file: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("%w: %d names tried in %s", ErrNamesExhausted, s.maxAttempts, s.dir)
}

// List returns the store's result files, sorted.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.name+"-*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Load reads a result file.
func Load(path string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var r RunResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing result %s: %w", path, err)
	}
	return &r, nil
}
