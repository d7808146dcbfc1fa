// Package cache memoizes the assembled timeline behind a content-addressed
// artifact: the cache key is a hash of every input that affects the output,
// so the cache is a pure latency layer — disabling it can never change what
// a run produces.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/rs/zerolog"

	"github.com/clinical-research/cohort/internal/timeline"
	"github.com/clinical-research/cohort/internal/vocab"
)

// formatVersion is hashed into every key so an evolved on-disk layout can
// never silently deserialize into an incompatible structure.
const formatVersion = 1

// ErrCorrupt marks a cached artifact that exists but cannot be decoded.
// Recovery requires the caller to explicitly force a refresh; the cache
// never silently reprocesses on its own.
var ErrCorrupt = errors.New("cache artifact corrupt (refresh required)")

// Key captures the run configuration that determines an artifact's content.
type Key struct {
	Dataset string
	Root    string
	Tables  []string
	Mapping []string // rendered code-mapping entries, see vocab.Mapping.Entries
	Dev     bool
}

// Hash returns the content address: a deterministic sha256 over the sorted
// key fields and the format version.
func (k Key) Hash() string {
	tables := append([]string{}, k.Tables...)
	sort.Strings(tables)
	mapping := append([]string{}, k.Mapping...)
	sort.Strings(mapping)

	mode := "prod"
	if k.Dev {
		mode = "dev"
	}
	parts := []string{fmt.Sprintf("v%d", formatVersion), k.Dataset, k.Root}
	parts = append(parts, tables...)
	parts = append(parts, mapping...)
	parts = append(parts, mode)

	sum := sha256.Sum256([]byte(strings.Join(parts, "+")))
	return hex.EncodeToString(sum[:])
}

// Artifact is the cached pair: the timeline collection and the vocabulary
// registry it was mapped under. It must round-trip exactly.
type Artifact struct {
	Timeline *timeline.Collection
	Registry vocab.Registry
}

// Cache stores one snappy-compressed gob artifact per key hash.
type Cache struct {
	Dir string
	Log zerolog.Logger
}

func New(dir string, log zerolog.Logger) *Cache {
	return &Cache{Dir: dir, Log: log}
}

func (c *Cache) path(key Key) string {
	return filepath.Join(c.Dir, key.Hash()+".gob.sz")
}

// Fetch is the memoization entry point. On a hit (and no forced refresh) it
// returns the cached artifact; a corrupt artifact surfaces as ErrCorrupt
// rather than triggering a rebuild. On a miss or refresh it calls build and
// persists the result. The second return reports whether the artifact came
// from cache.
func (c *Cache) Fetch(key Key, refresh bool, build func() (*Artifact, error)) (*Artifact, bool, error) {
	path := c.path(key)

	if !refresh {
		if _, err := os.Stat(path); err == nil {
			art, err := c.load(path)
			if err != nil {
				return nil, false, err
			}
			c.Log.Debug().Str("path", path).Msg("loaded dataset from cache")
			return art, true, nil
		}
	}

	art, err := build()
	if err != nil {
		return nil, false, err
	}
	if err := c.store(path, art); err != nil {
		return nil, false, err
	}
	c.Log.Debug().Str("path", path).Msg("saved dataset to cache")
	return art, false, nil
}

func (c *Cache) load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() // read-only handle

	var art Artifact
	if err := gob.NewDecoder(snappy.NewReader(f)).Decode(&art); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return &art, nil
}

// store writes to a temp file in the cache dir and renames into place, so a
// crashed writer never leaves a truncated artifact under a valid key.
func (c *Cache) store(path string, art *Artifact) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.Dir, ".cohort-*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op after successful rename

	sz := snappy.NewBufferedWriter(tmp)
	if err := gob.NewEncoder(sz).Encode(art); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode cache artifact: %w", err)
	}
	if err := sz.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush cache artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("publish cache artifact: %w", err)
	}
	return nil
}
