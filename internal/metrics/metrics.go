// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics tracks memory usage and file-processing counters for a
// search run. All counters are advisory atomics, never synchronization
// primitives.
package metrics

import (
	"sync/atomic"

	"github.com/petar-djukic/goscout/pkg/types"
)

// File-size thresholds shared by the processor and the replacement executor.
const (
	SmallFileThreshold = 32 * 1024        // 32 KiB
	LargeFileThreshold = 10 * 1024 * 1024 // 10 MiB
)

// MemoryMetrics is a set of thread-safe counters. The zero value is ready
// to use; share one instance per search via pointer.
type MemoryMetrics struct {
	totalAllocated atomic.Uint64
	peakAllocated  atomic.Uint64
	mmapAllocated  atomic.Uint64
	cacheSize      atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	smallFiles    atomic.Uint64
	bufferedFiles atomic.Uint64
	mmapFiles     atomic.Uint64
}

// New returns a fresh metrics instance.
func New() *MemoryMetrics { return &MemoryMetrics{} }

// RecordAllocation adds n bytes to the running total and raises the peak
// via a compare-and-swap loop.
func (m *MemoryMetrics) RecordAllocation(n uint64) {
	total := m.totalAllocated.Add(n)
	for {
		peak := m.peakAllocated.Load()
		if total <= peak || m.peakAllocated.CompareAndSwap(peak, total) {
			return
		}
	}
}

// RecordDeallocation subtracts n bytes from the running total.
func (m *MemoryMetrics) RecordDeallocation(n uint64) {
	m.totalAllocated.Add(^(n - 1))
}

// RecordMmap tracks newly mapped bytes, independently of heap allocations.
func (m *MemoryMetrics) RecordMmap(n uint64) { m.mmapAllocated.Add(n) }

// RecordMunmap releases previously mapped bytes.
func (m *MemoryMetrics) RecordMunmap(n uint64) { m.mmapAllocated.Add(^(n - 1)) }

// RecordCacheOperation adjusts the tracked cache size and bumps the hit or
// miss counter.
func (m *MemoryMetrics) RecordCacheOperation(sizeDelta int64, hit bool) {
	if sizeDelta >= 0 {
		m.cacheSize.Add(uint64(sizeDelta))
	} else {
		m.cacheSize.Add(^(uint64(-sizeDelta) - 1))
	}
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

// RecordFileProcessing increments exactly one of the three per-strategy
// counters based on the file size.
func (m *MemoryMetrics) RecordFileProcessing(size int64) {
	switch {
	case size < SmallFileThreshold:
		m.smallFiles.Add(1)
	case size >= LargeFileThreshold:
		m.mmapFiles.Add(1)
	default:
		m.bufferedFiles.Add(1)
	}
}

// CacheHits returns the cache hit count.
func (m *MemoryMetrics) CacheHits() uint64 { return m.cacheHits.Load() }

// CacheMisses returns the cache miss count.
func (m *MemoryMetrics) CacheMisses() uint64 { return m.cacheMisses.Load() }

// Snapshot returns a point-in-time copy of all counters.
func (m *MemoryMetrics) Snapshot() types.MemoryStats {
	return types.MemoryStats{
		TotalAllocated: m.totalAllocated.Load(),
		PeakAllocated:  m.peakAllocated.Load(),
		MmapAllocated:  m.mmapAllocated.Load(),
		CacheSizeBytes: m.cacheSize.Load(),
		CacheHits:      m.cacheHits.Load(),
		CacheMisses:    m.cacheMisses.Load(),
		SmallFiles:     m.smallFiles.Load(),
		BufferedFiles:  m.bufferedFiles.Load(),
		MmapFiles:      m.mmapFiles.Load(),
	}
}
