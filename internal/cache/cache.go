// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cache persists per-file search results between runs and decides
// which files changed since the last search.
//
// The cache is a single versioned JSON document, optionally gzip-compressed
// (the loader sniffs the gzip magic bytes). Load never fails: any mismatch
// or corruption degrades to an empty cache with a warning.
package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

// Version is bumped whenever the document layout changes; a mismatch
// discards the cache.
const Version = 1

// frequentThreshold is how many observed changes mark a path as frequently
// changed.
const frequentThreshold = 3

// Metadata describes the cache itself.
type Metadata struct {
	LastRun      time.Time         `json:"last_run"`
	HitRate      float64           `json:"hit_rate"`
	Compressed   bool              `json:"compressed"`
	ChangeCounts map[string]uint32 `json:"change_counts,omitempty"`
}

// FrequentlyChanged lists the paths seen changing in several runs.
func (m Metadata) FrequentlyChanged() []string {
	var out []string
	for path, n := range m.ChangeCounts {
		if n >= frequentThreshold {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

type document struct {
	Version     int                          `json:"version"`
	Fingerprint string                       `json:"fingerprint"`
	Metadata    Metadata                     `json:"metadata"`
	Entries     map[string]*types.CacheEntry `json:"entries"`
}

// IncrementalCache maps absolute paths to their cached results.
type IncrementalCache struct {
	doc  document
	path string
	log  *slog.Logger
}

// Load reads the cache document at path. A missing file, version mismatch,
// pattern-set fingerprint mismatch, or malformed document yields an empty
// cache; only the warning notes why.
func Load(path, fingerprint string, logger *slog.Logger) *IncrementalCache {
	log := logging.OrDefault(logger)
	c := &IncrementalCache{
		doc: document{
			Version:     Version,
			Fingerprint: fingerprint,
			Metadata:    Metadata{ChangeCounts: map[string]uint32{}},
			Entries:     map[string]*types.CacheEntry{},
		},
		path: path,
		log:  log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("cache unreadable, starting empty", "path", path, "error", err)
		}
		return c
	}

	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, zerr := gzip.NewReader(bytes.NewReader(data))
		if zerr == nil {
			if raw, rerr := io.ReadAll(zr); rerr == nil {
				data = raw
			} else {
				zerr = rerr
			}
			zr.Close()
		}
		if zerr != nil {
			log.Warn("cache decompression failed, starting empty", "path", path, "error", zerr)
			return c
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("cache malformed, starting empty", "path", path, "error", err)
		return c
	}
	if doc.Version != Version {
		log.Warn("cache version mismatch, starting empty", "path", path,
			"found", doc.Version, "want", Version)
		return c
	}
	if doc.Fingerprint != fingerprint {
		log.Warn("cache built for a different pattern set, invalidating", "path", path)
		return c
	}

	if doc.Entries == nil {
		doc.Entries = map[string]*types.CacheEntry{}
	}
	if doc.Metadata.ChangeCounts == nil {
		doc.Metadata.ChangeCounts = map[string]uint32{}
	}
	c.doc = doc
	return c
}

// Entry returns the cached record for a path.
func (c *IncrementalCache) Entry(path string) (*types.CacheEntry, bool) {
	e, ok := c.doc.Entries[path]
	return e, ok
}

// Put stores a record, stamping access time and the current fingerprint.
func (c *IncrementalCache) Put(path string, sig types.FileSignature, matches []types.Match) {
	prev := c.doc.Entries[path]
	entry := &types.CacheEntry{
		Signature:    sig,
		Matches:      matches,
		Fingerprint:  c.doc.Fingerprint,
		LastAccessed: time.Now(),
	}
	if prev != nil {
		entry.AccessCount = prev.AccessCount
	}
	c.doc.Entries[path] = entry
}

// MarkAccessed bumps the usage statistics of an entry that served a hit.
func (c *IncrementalCache) MarkAccessed(path string) {
	if e, ok := c.doc.Entries[path]; ok {
		e.LastAccessed = time.Now()
		e.AccessCount++
	}
}

// MarkChanged records that a path was observed modified, feeding the
// frequently-changed metadata.
func (c *IncrementalCache) MarkChanged(path string) {
	c.doc.Metadata.ChangeCounts[path]++
}

// Migrate moves an entry from a renamed file's previous path to its new
// one. Returns false when no entry existed.
func (c *IncrementalCache) Migrate(oldPath, newPath string) bool {
	e, ok := c.doc.Entries[oldPath]
	if !ok {
		return false
	}
	delete(c.doc.Entries, oldPath)
	c.doc.Entries[newPath] = e
	return true
}

// Remove drops the entry for a deleted file.
func (c *IncrementalCache) Remove(path string) { delete(c.doc.Entries, path) }

// Paths returns all cached paths, for deletion pruning.
func (c *IncrementalCache) Paths() []string {
	out := make([]string, 0, len(c.doc.Entries))
	for p := range c.doc.Entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of cached entries.
func (c *IncrementalCache) Len() int { return len(c.doc.Entries) }

// Metadata returns a copy of the cache metadata.
func (c *IncrementalCache) Metadata() Metadata { return c.doc.Metadata }

// UpdateStats records the hit rate of the finished search.
func (c *IncrementalCache) UpdateStats(hits, total int) {
	if total > 0 {
		c.doc.Metadata.HitRate = float64(hits) / float64(total)
	}
	c.doc.Metadata.LastRun = time.Now()
}

// Save writes the document atomically via temp-file + rename. When maxSize
// is positive and the serialized document exceeds it, least-recently-
// matched entries are evicted first until it fits.
func (c *IncrementalCache) Save(compress bool, maxSize int64) error {
	c.doc.Metadata.Compressed = compress

	data, err := json.Marshal(&c.doc)
	if err != nil {
		return &types.CacheError{Op: "save", Err: err}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		c.evict(maxSize, int64(len(data)))
		if data, err = json.Marshal(&c.doc); err != nil {
			return &types.CacheError{Op: "save", Err: err}
		}
	}

	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return &types.CacheError{Op: "save", Err: err}
		}
		if err := zw.Close(); err != nil {
			return &types.CacheError{Op: "save", Err: err}
		}
		data = buf.Bytes()
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.CacheError{Op: "save", Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".goscout-cache-*.tmp")
	if err != nil {
		return &types.CacheError{Op: "save", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &types.CacheError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.CacheError{Op: "save", Err: err}
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return &types.CacheError{Op: "save", Err: err}
	}
	return nil
}

// evict drops entries in LastAccessed order (oldest first, ties by lowest
// access count) until the estimated size fits the budget.
func (c *IncrementalCache) evict(maxSize, currentSize int64) {
	type sized struct {
		path string
		size int64
	}
	order := make([]sized, 0, len(c.doc.Entries))
	for path, e := range c.doc.Entries {
		raw, err := json.Marshal(e)
		size := int64(len(raw) + len(path) + 4)
		if err != nil {
			size = int64(len(path))
		}
		order = append(order, sized{path, size})
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := c.doc.Entries[order[i].path], c.doc.Entries[order[j].path]
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.Before(b.LastAccessed)
		}
		return a.AccessCount < b.AccessCount
	})

	for _, s := range order {
		if currentSize <= maxSize {
			break
		}
		delete(c.doc.Entries, s.path)
		currentSize -= s.size
	}
}
