package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/vibe-mhc/internal/binding"
	"github.com/inodb/vibe-mhc/internal/input"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// PredictionCache manages a gob-serialized prediction index on disk:
//
//	{dir}/predictions.gob       (serialized predictions)
//	{dir}/predictions.gob.meta  (source file fingerprint)
type PredictionCache struct {
	dir string
}

// NewPredictionCache creates a prediction cache for the given directory.
func NewPredictionCache(dir string) *PredictionCache {
	return &PredictionCache{dir: dir}
}

func (pc *PredictionCache) gobPath() string {
	return filepath.Join(pc.dir, "predictions.gob")
}

func (pc *PredictionCache) metaPath() string {
	return filepath.Join(pc.dir, "predictions.gob.meta")
}

type cachedPrediction struct {
	Class      mhc.Class
	Sequence   string
	Prediction binding.Prediction
}

// Valid checks whether the cached predictions match the current source file.
func (pc *PredictionCache) Valid(src FileFingerprint) bool {
	meta, err := pc.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"path", src.Path},
		{"size", strconv.FormatInt(src.Size, 10)},
		{"modtime", src.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for _, c := range checks {
		if meta[c.key] != c.val {
			return false
		}
	}

	if _, err := os.Stat(pc.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads serialized predictions from disk.
func (pc *PredictionCache) Load() (*input.PredictionIndex, error) {
	f, err := os.Open(pc.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open prediction cache: %w", err)
	}
	defer f.Close()

	var data []cachedPrediction
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode prediction cache: %w", err)
	}

	idx := input.NewPredictionIndex()
	for _, p := range data {
		idx.Add(p.Class, p.Sequence, p.Prediction)
	}
	return idx, nil
}

// Write serializes the index to disk.
func (pc *PredictionCache) Write(idx *input.PredictionIndex, src FileFingerprint) error {
	data := make([]cachedPrediction, 0, idx.Len())
	idx.Each(func(class mhc.Class, sequence string, p binding.Prediction) {
		data = append(data, cachedPrediction{Class: class, Sequence: sequence, Prediction: p})
	})

	if err := os.MkdirAll(pc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	f, err := os.Create(pc.gobPath())
	if err != nil {
		return fmt.Errorf("create prediction cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(pc.gobPath())
		return fmt.Errorf("encode prediction cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close prediction cache: %w", err)
	}

	return pc.writeMeta(src)
}

// Clear removes the cached prediction files.
func (pc *PredictionCache) Clear() {
	os.Remove(pc.gobPath())
	os.Remove(pc.metaPath())
}

func (pc *PredictionCache) writeMeta(src FileFingerprint) error {
	lines := []string{
		"path=" + src.Path,
		"size=" + strconv.FormatInt(src.Size, 10),
		"modtime=" + src.ModTime.UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(pc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (pc *PredictionCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(pc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
