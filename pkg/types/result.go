// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import "time"

// ContextLine is one line of surrounding context attached to a match.
type ContextLine struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Match is a single pattern occurrence within one line of a file.
// Start and End are byte offsets into LineText, Start < End <= len(LineText).
type Match struct {
	LineNumber    int           `json:"line_number"` // 1-based
	Start         int           `json:"start"`
	End           int           `json:"end"`
	PatternIndex  int           `json:"pattern_index"`
	LineText      string        `json:"line_text"`
	ContextBefore []ContextLine `json:"context_before,omitempty"`
	ContextAfter  []ContextLine `json:"context_after,omitempty"`
}

// FileResult holds the ordered matches found in one file.
type FileResult struct {
	Path         string  `json:"path"`
	Matches      []Match `json:"matches"`
	BytesScanned int64   `json:"bytes_scanned"`
	WasBinary    bool    `json:"was_binary"`
	WasCached    bool    `json:"was_cached"`
}

// MemoryStats is a point-in-time snapshot of the engine's memory counters.
type MemoryStats struct {
	TotalAllocated uint64 `json:"total_allocated"`
	PeakAllocated  uint64 `json:"peak_allocated"`
	MmapAllocated  uint64 `json:"mmap_allocated"`
	CacheSizeBytes uint64 `json:"cache_size_bytes"`
	CacheHits      uint64 `json:"cache_hits"`
	CacheMisses    uint64 `json:"cache_misses"`
	SmallFiles     uint64 `json:"small_files"`
	BufferedFiles  uint64 `json:"buffered_files"`
	MmapFiles      uint64 `json:"mmap_files"`
}

// SearchResult aggregates per-file results in walker order.
type SearchResult struct {
	Files             []FileResult `json:"files"`
	TotalMatches      int          `json:"total_matches"`
	TotalFilesScanned int          `json:"total_files_scanned"`
	TotalFilesMatched int          `json:"total_files_matched"`
	Stats             MemoryStats  `json:"stats"`

	// Errors collects per-file failures (encoding, I/O) that skipped a file
	// without aborting the search.
	Errors []error `json:"-"`
}

// AddFile appends a file result and updates the aggregate totals.
func (r *SearchResult) AddFile(fr FileResult) {
	r.Files = append(r.Files, fr)
	r.TotalFilesScanned++
	if len(fr.Matches) > 0 {
		r.TotalFilesMatched++
		r.TotalMatches += len(fr.Matches)
	}
}

// FileSignature is a compact description of a file used to decide
// "unchanged" without reading its content. Two equal signatures mean the
// file has not changed.
type FileSignature struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Hash    string    `json:"hash,omitempty"` // optional xxhash of content, hex
}

// Equal reports whether two signatures describe the same file state.
// When both carry content hashes, the hash is authoritative.
func (s FileSignature) Equal(other FileSignature) bool {
	if s.Hash != "" && other.Hash != "" {
		return s.Hash == other.Hash && s.Size == other.Size
	}
	return s.Size == other.Size && s.ModTime.Equal(other.ModTime)
}

// ChangeStatus classifies how a candidate file differs from the cached view.
type ChangeStatus int

const (
	StatusUnchanged ChangeStatus = iota
	StatusAdded
	StatusModified
	StatusRenamed
	StatusDeleted
)

func (s ChangeStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusRenamed:
		return "renamed"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeInfo is the detector's verdict for one path. PreviousPath is set
// only for StatusRenamed so a cache entry can be migrated.
type ChangeInfo struct {
	Path         string
	Status       ChangeStatus
	PreviousPath string
}

// CacheEntry is the persisted per-file record of an incremental cache.
type CacheEntry struct {
	Signature    FileSignature `json:"signature"`
	Matches      []Match       `json:"matches"`
	Fingerprint  string        `json:"fingerprint"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessCount  uint64        `json:"access_count"`
}
