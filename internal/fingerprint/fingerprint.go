// Package fingerprint identifies an optimization problem by hashing
// everything that determines a run's result except its seed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spboyer/keysmith/internal/anneal"
	"github.com/spboyer/keysmith/internal/corpus"
	"github.com/spboyer/keysmith/internal/geometry"
)

// namespace scopes run IDs to this tool.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/spboyer/keysmith/runs"))

// Metric is the configured form of one weighted metric.
type Metric struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Weight int            `json:"weight"`
	Params map[string]any `json:"params,omitempty"`
}

// Problem is everything a run's outcome depends on besides its seed.
type Problem struct {
	Corpus   *corpus.Corpus
	Geometry *geometry.Geometry
	Alphabet []rune
	Metrics  []Metric
	Schedule anneal.Config
}

// Of returns the hex sha256 of the problem. The schedule's seed is ignored
// so every run of a batch shares one fingerprint.
func Of(p Problem) (string, error) {
	h := sha256.New()

	if err := hashCorpus(h, p.Corpus); err != nil {
		return "", fmt.Errorf("hashing corpus: %w", err)
	}

	keysJSON, err := json.Marshal(p.Geometry.Keys())
	if err != nil {
		return "", fmt.Errorf("marshaling geometry: %w", err)
	}
	if err := writeString(h, p.Geometry.Name()); err != nil {
		return "", err
	}
	if _, err := h.Write(keysJSON); err != nil {
		return "", err
	}

	if err := writeString(h, string(p.Alphabet)); err != nil {
		return "", err
	}

	metricsJSON, err := json.Marshal(p.Metrics)
	if err != nil {
		return "", fmt.Errorf("marshaling metrics: %w", err)
	}
	if _, err := h.Write(metricsJSON); err != nil {
		return "", err
	}

	schedule := p.Schedule
	schedule.Seed = 0
	scheduleJSON, err := json.Marshal(schedule)
	if err != nil {
		return "", fmt.Errorf("marshaling schedule: %w", err)
	}
	if _, err := h.Write(scheduleJSON); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// RunID derives a stable identifier for the run of a problem with a seed.
func RunID(fingerprint string, seed int64) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(fingerprint+"\x00"+strconv.FormatInt(seed, 10)))
}

func hashCorpus(w io.Writer, c *corpus.Corpus) error {
	if err := writeString(w, c.Name()); err != nil {
		return err
	}
	for _, kind := range corpus.Kinds {
		if err := writeString(w, kind.String()); err != nil {
			return err
		}
		// entries are sorted, so the hash is independent of input order
		for _, ng := range c.Entries(kind) {
			if err := writeString(w, string(ng.Chars)); err != nil {
				return err
			}
			if err := writeFloat(w, ng.Count); err != nil {
				return err
			}
		}
	}
	return nil
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// null byte delimiter keeps adjacent fields from running together
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeFloat(w io.Writer, f float64) error {
	_, err := fmt.Fprintf(w, "%s\x00", strconv.FormatFloat(f, 'g', -1, 64))
	return err
}
