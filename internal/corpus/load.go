package corpus

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Load reads a corpus file. The format is chosen by extension: .json or
// .csv, optionally followed by .gz or .zst.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	base := filepath.Base(path)
	var r io.Reader = f

	switch strings.ToLower(filepath.Ext(base)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("corpus: gzip %s: %w", path, err)
		}
		defer gz.Close() //nolint:errcheck
		r = gz
		base = strings.TrimSuffix(base, filepath.Ext(base))
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("corpus: zstd %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}

	ext := strings.ToLower(filepath.Ext(base))
	name := strings.TrimSuffix(base, filepath.Ext(base))

	var c *Corpus
	switch ext {
	case ".json":
		c, err = ReadJSON(r, name)
	case ".csv":
		c, err = ReadCSV(r, name)
	default:
		return nil, fmt.Errorf("corpus: %s: unsupported format %q (want .json or .csv)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("corpus: %s: %w", path, err)
	}
	return c, nil
}

// jsonCorpus is the on-disk JSON layout.
type jsonCorpus struct {
	Name string `json:"name,omitempty"`
	Tables
}

// ReadJSON decodes a JSON corpus. A "name" field overrides defaultName.
func ReadJSON(r io.Reader, defaultName string) (*Corpus, error) {
	var doc jsonCorpus
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	name := doc.Name
	if name == "" {
		name = defaultName
	}
	return New(name, doc.Tables)
}

// ReadCSV decodes a headered CSV corpus. Accepted headers are
// "ngram,count" (kind inferred from n-gram length, skipgrams can't be
// expressed) and "kind,ngram,count". Repeated n-grams are summed.
func ReadCSV(r io.Reader, name string) (*Corpus, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: empty (no header row)")
	}

	kindCol, ngramCol, countCol := -1, -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "kind":
			kindCol = i
		case "ngram":
			ngramCol = i
		case "count", "frequency":
			countCol = i
		}
	}
	if ngramCol < 0 || countCol < 0 {
		return nil, fmt.Errorf("csv: header must name 'ngram' and 'count' columns, got %v", records[0])
	}

	tables := Tables{
		Unigrams:  map[string]float64{},
		Bigrams:   map[string]float64{},
		Skipgrams: map[string]float64{},
		Trigrams:  map[string]float64{},
	}

	for i, record := range records[1:] {
		if len(record) != len(records[0]) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(records[0]))
		}
		ngram := record[ngramCol]
		count, err := strconv.ParseFloat(strings.TrimSpace(record[countCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: count %q: %w", i+2, record[countCol], err)
		}

		var kind Kind
		if kindCol >= 0 {
			kind, err = ParseKind(strings.ToLower(strings.TrimSpace(record[kindCol])))
			if err != nil {
				return nil, fmt.Errorf("csv: row %d: %w", i+2, err)
			}
		} else {
			kind, err = ParseKind(strconv.Itoa(len([]rune(ngram))))
			if err != nil {
				return nil, fmt.Errorf("csv: row %d: n-gram %q: %w", i+2, ngram, ErrInvalidNgram)
			}
		}
		tables.table(kind)[ngram] += count
	}

	return New(name, tables)
}
