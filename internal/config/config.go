// Package config provides the run configuration loaded from keysmith.yaml
// files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/validation"
	"gopkg.in/yaml.v3"
)

// Default values for run configuration. New() references them and no other
// code should duplicate them.
const (
	DefaultFileName = "keysmith.yaml"

	DefaultGeometry = "ortho-3x10"
	DefaultStrategy = "anneal"

	DefaultMinTemperature  = 1e-6
	DefaultCoolingRate     = 0.99
	DefaultCoolingInterval = 100
	DefaultMaxIterations   = 200_000
	// DefaultStallLimit derives the limit from the number of keys, as
	// ceil(n(ln n + γ) + 0.5).
	DefaultStallLimit = -1

	DefaultRuns    = 1
	DefaultWorkers = 4

	DefaultOutputDir   = "results/"
	DefaultOutputName  = "layout"
	DefaultMaxAttempts = 16
)

// ErrInvalidConfig wraps semantic problems found after schema validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// SchemaError lists the schema violations of a config document.
type SchemaError struct {
	Source   string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s does not match the run schema:\n  %s", e.Source, strings.Join(e.Problems, "\n  "))
}

// MetricConfig configures one weighted metric.
type MetricConfig struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name,omitempty"`
	Weight int            `yaml:"weight"`
	Params map[string]any `yaml:"params,omitempty"`
}

// IntervalConfig bounds the adaptive cooling interval.
type IntervalConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// AnnealConfig holds the annealing schedule.
type AnnealConfig struct {
	// InitialTemperature of 0 calibrates the temperature automatically.
	InitialTemperature float64         `yaml:"initial_temperature,omitempty"`
	MinTemperature     *float64        `yaml:"min_temperature,omitempty"`
	CoolingRate        float64         `yaml:"cooling_rate,omitempty"`
	CoolingInterval    int             `yaml:"cooling_interval,omitempty"`
	AdaptiveInterval   *IntervalConfig `yaml:"adaptive_interval,omitempty"`
	MaxIterations      int             `yaml:"max_iterations,omitempty"`
	StallLimit         *int            `yaml:"stall_limit,omitempty"`
	// Seed is the batch's base seed; each run derives its own from it.
	Seed       int64  `yaml:"seed,omitempty"`
	SeedLayout string `yaml:"seed_layout,omitempty"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir         string `yaml:"dir,omitempty"`
	Name        string `yaml:"name,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
}

// Config is a complete run configuration.
type Config struct {
	Corpus   string `yaml:"corpus"`
	Geometry string `yaml:"geometry,omitempty"`
	// Alphabet restricts optimization to these characters. Empty means
	// every character of the corpus.
	Alphabet string         `yaml:"alphabet,omitempty"`
	Metrics  []MetricConfig `yaml:"metrics"`
	// Strategy is "anneal" or "greedy". A greedy descent ignores the
	// temperature settings of the anneal section.
	Strategy  string       `yaml:"strategy,omitempty"`
	Anneal    AnnealConfig `yaml:"anneal,omitempty"`
	Runs      int          `yaml:"runs,omitempty"`
	Workers   int          `yaml:"workers,omitempty"`
	TimeLimit string       `yaml:"time_limit,omitempty"`
	Output    OutputConfig `yaml:"output,omitempty"`

	// baseDir is the directory relative paths are resolved against.
	baseDir string
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Geometry: DefaultGeometry,
		Strategy: DefaultStrategy,
		Anneal: AnnealConfig{
			MinTemperature:  float64Ptr(DefaultMinTemperature),
			CoolingRate:     DefaultCoolingRate,
			CoolingInterval: DefaultCoolingInterval,
			MaxIterations:   DefaultMaxIterations,
			StallLimit:      intPtr(DefaultStallLimit),
		},
		Runs:    DefaultRuns,
		Workers: DefaultWorkers,
		Output: OutputConfig{
			Dir:         DefaultOutputDir,
			Name:        DefaultOutputName,
			MaxAttempts: DefaultMaxAttempts,
		},
	}
}

// Load reads a run configuration file, validates it against the run
// schema, and fills in missing fields with defaults. Relative paths in the
// file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}
	return parse(data, path, filepath.Dir(abs))
}

// Parse is Load for in-memory documents.
func Parse(data []byte, baseDir string) (*Config, error) {
	return parse(data, "config", baseDir)
}

func parse(data []byte, source, baseDir string) (*Config, error) {
	if problems := validation.ValidateRunBytes(data); len(problems) > 0 {
		return nil, &SchemaError{Source: source, Problems: problems}
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	cfg.baseDir = baseDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Corpus != "" {
		dst.Corpus = src.Corpus
	}
	if src.Geometry != "" {
		dst.Geometry = src.Geometry
	}
	if src.Alphabet != "" {
		dst.Alphabet = src.Alphabet
	}
	if len(src.Metrics) > 0 {
		dst.Metrics = src.Metrics
	}
	if src.Strategy != "" {
		dst.Strategy = src.Strategy
	}

	// Anneal
	if src.Anneal.InitialTemperature != 0 {
		dst.Anneal.InitialTemperature = src.Anneal.InitialTemperature
	}
	if src.Anneal.MinTemperature != nil {
		dst.Anneal.MinTemperature = src.Anneal.MinTemperature
	}
	if src.Anneal.CoolingRate != 0 {
		dst.Anneal.CoolingRate = src.Anneal.CoolingRate
	}
	if src.Anneal.CoolingInterval != 0 {
		dst.Anneal.CoolingInterval = src.Anneal.CoolingInterval
	}
	if src.Anneal.AdaptiveInterval != nil {
		dst.Anneal.AdaptiveInterval = src.Anneal.AdaptiveInterval
	}
	if src.Anneal.MaxIterations != 0 {
		dst.Anneal.MaxIterations = src.Anneal.MaxIterations
	}
	if src.Anneal.StallLimit != nil {
		dst.Anneal.StallLimit = src.Anneal.StallLimit
	}
	if src.Anneal.Seed != 0 {
		dst.Anneal.Seed = src.Anneal.Seed
	}
	if src.Anneal.SeedLayout != "" {
		dst.Anneal.SeedLayout = src.Anneal.SeedLayout
	}

	if src.Runs != 0 {
		dst.Runs = src.Runs
	}
	if src.Workers != 0 {
		dst.Workers = src.Workers
	}
	if src.TimeLimit != "" {
		dst.TimeLimit = src.TimeLimit
	}

	// Output
	if src.Output.Dir != "" {
		dst.Output.Dir = src.Output.Dir
	}
	if src.Output.Name != "" {
		dst.Output.Name = src.Output.Name
	}
	if src.Output.MaxAttempts != 0 {
		dst.Output.MaxAttempts = src.Output.MaxAttempts
	}
}

// Validate checks what the schema cannot express. Flag overrides applied
// after Load should be followed by another Validate.
func (c *Config) Validate() error {
	var problems []string
	if c.Corpus == "" {
		problems = append(problems, "corpus is required")
	}
	if len(c.Metrics) == 0 {
		problems = append(problems, "at least one metric is required")
	}
	if c.Runs < 1 {
		problems = append(problems, fmt.Sprintf("runs must be at least 1, got %d", c.Runs))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	switch anneal.Strategy(c.Strategy) {
	case anneal.StrategyAnneal, anneal.StrategyGreedy:
	default:
		problems = append(problems, fmt.Sprintf("strategy must be %q or %q, got %q", anneal.StrategyAnneal, anneal.StrategyGreedy, c.Strategy))
	}
	if c.Anneal.MaxIterations < 1 {
		problems = append(problems, fmt.Sprintf("anneal.max_iterations must be positive, got %d", c.Anneal.MaxIterations))
	}
	if r := c.Anneal.AdaptiveInterval; r != nil && r.Max < r.Min {
		problems = append(problems, fmt.Sprintf("anneal.adaptive_interval max %d is below min %d", r.Max, r.Min))
	}
	if _, err := c.TimeLimitDuration(); err != nil {
		problems = append(problems, err.Error())
	}
	seen := map[rune]bool{}
	for _, r := range c.Alphabet {
		if seen[r] {
			problems = append(problems, fmt.Sprintf("alphabet repeats %q", r))
			break
		}
		seen[r] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// TimeLimitDuration parses the per-run time limit. Zero means no limit.
func (c *Config) TimeLimitDuration() (time.Duration, error) {
	if c.TimeLimit == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TimeLimit)
	if err != nil {
		return 0, fmt.Errorf("time_limit: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("time_limit must not be negative, got %s", c.TimeLimit)
	}
	return d, nil
}

// Schedule converts the anneal section. The seed is the batch base seed.
func (c *Config) Schedule() anneal.Config {
	s := anneal.Config{
		Strategy:           anneal.Strategy(c.Strategy),
		InitialTemperature: c.Anneal.InitialTemperature,
		CoolingRate:        c.Anneal.CoolingRate,
		CoolingInterval:    c.Anneal.CoolingInterval,
		MaxIterations:      c.Anneal.MaxIterations,
		Seed:               c.Anneal.Seed,
		SeedLayout:         c.Anneal.SeedLayout,
	}
	if c.Anneal.MinTemperature != nil {
		s.MinTemperature = *c.Anneal.MinTemperature
	}
	if c.Anneal.StallLimit != nil {
		s.StallLimit = *c.Anneal.StallLimit
	}
	if r := c.Anneal.AdaptiveInterval; r != nil {
		s.AdaptiveInterval = &anneal.IntervalRange{Min: r.Min, Max: r.Max}
	}
	return s
}

// BaseDir returns the directory relative paths resolve against.
func (c *Config) BaseDir() string { return c.baseDir }

// Resolve makes p absolute relative to the config's directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

func float64Ptr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}
