// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package engine coordinates the search pipeline: walk, change detection,
// parallel per-file processing, ordered aggregation, and cache persistence.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/petar-djukic/goscout/internal/cache"
	"github.com/petar-djukic/goscout/internal/matcher"
	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/internal/processor"
	"github.com/petar-djukic/goscout/internal/walker"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

// Config holds one search's normalized settings.
type Config struct {
	Patterns       []types.PatternDefinition
	Root           string
	IgnorePatterns []string
	Extensions     []string
	MaxDepth       int
	FollowSymlinks bool

	Threads       int // <= 0 = number of logical CPUs; explicit zero is rejected upstream
	ContextBefore int
	ContextAfter  int
	Encoding      types.EncodingMode

	Incremental   bool
	CachePath     string
	CacheStrategy cache.Strategy
	MaxCacheSize  int64
	Compress      bool

	Logger *slog.Logger
}

// Search runs the full pipeline and returns results in walker order.
func Search(ctx context.Context, cfg Config) (*types.SearchResult, error) {
	log := logging.OrDefault(cfg.Logger)

	if len(cfg.Patterns) == 0 {
		return nil, types.ErrNoPatterns
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	mem := metrics.New()
	set, err := matcher.NewSet(cfg.Patterns, mem)
	if err != nil {
		return nil, err
	}
	fingerprint := set.Fingerprint()

	w, err := walker.New(walker.Config{
		Root:           cfg.Root,
		IgnorePatterns: cfg.IgnorePatterns,
		Extensions:     cfg.Extensions,
		MaxDepth:       cfg.MaxDepth,
		FollowSymlinks: cfg.FollowSymlinks,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	paths, err := w.Walk()
	if err != nil {
		return nil, err
	}
	log.Debug("walk complete", "root", cfg.Root, "candidates", len(paths))

	proc := processor.New(processor.Config{
		Set:           set,
		ContextBefore: cfg.ContextBefore,
		ContextAfter:  cfg.ContextAfter,
		Encoding:      cfg.Encoding,
		Metrics:       mem,
		Logger:        log,
	})

	if !cfg.Incremental {
		result := runParallel(ctx, proc, paths, nil, threads, log)
		result.Stats = mem.Snapshot()
		logSummary(log, result)
		return result, ctx.Err()
	}

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(cfg.Root, ".goscout", "cache.json")
	}
	store := cache.Load(cachePath, fingerprint, log)

	prev := make(map[string]types.FileSignature, store.Len())
	for _, p := range store.Paths() {
		if e, ok := store.Entry(p); ok {
			prev[p] = e.Signature
		}
	}
	detector := cache.NewDetector(cfg.CacheStrategy, cfg.Root, prev, log)
	changes := detector.Detect(paths)

	// Partition into cached reuse and fresh rescan, keeping walker order.
	cached := make(map[string][]types.Match, len(paths))
	hits := 0
	for _, path := range paths {
		info := changes[path]
		switch info.Status {
		case types.StatusRenamed:
			store.Migrate(info.PreviousPath, path)
		case types.StatusModified, types.StatusAdded:
			store.MarkChanged(path)
		}

		usable := info.Status == types.StatusUnchanged || info.Status == types.StatusRenamed
		if usable {
			if e, ok := store.Entry(path); ok {
				store.MarkAccessed(path)
				cached[path] = e.Matches
				hits++
			}
		}
	}

	result := runParallel(ctx, proc, paths, cached, threads, log)

	// Refresh cache entries for freshly scanned files; prune deletions.
	walked := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		walked[p] = struct{}{}
	}
	for _, fr := range result.Files {
		if fr.WasCached {
			continue
		}
		sig, err := cache.ComputeSignature(fr.Path, false)
		if err != nil {
			continue
		}
		store.Put(fr.Path, sig, fr.Matches)
	}
	for _, p := range store.Paths() {
		if _, ok := walked[p]; !ok {
			store.Remove(p)
		}
	}

	store.UpdateStats(hits, len(paths))
	if err := store.Save(cfg.Compress, cfg.MaxCacheSize); err != nil {
		log.Warn("cache save failed, continuing without persistence", "error", err)
	}

	result.Stats = mem.Snapshot()
	logSummary(log, result)
	return result, ctx.Err()
}

// runParallel dispatches paths not served by the cache to a worker pool and
// reassembles results in walker order via their indices.
func runParallel(ctx context.Context, proc *processor.FileProcessor, paths []string,
	cached map[string][]types.Match, threads int, log *slog.Logger) *types.SearchResult {

	type job struct {
		idx  int
		path string
	}

	slots := make([]types.FileResult, len(paths))
	errSlots := make([]error, len(paths))

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fr, err := proc.ProcessFile(ctx, j.path)
				if err != nil {
					errSlots[j.idx] = err
					fr = types.FileResult{Path: j.path}
				}
				slots[j.idx] = fr
			}
		}()
	}

	for i, path := range paths {
		if matches, ok := cached[path]; ok {
			slots[i] = types.FileResult{Path: path, Matches: matches, WasCached: true}
			continue
		}
		if ctx.Err() != nil {
			break
		}
		jobs <- job{idx: i, path: path}
	}
	close(jobs)
	wg.Wait()

	result := &types.SearchResult{}
	for i := range slots {
		if errSlots[i] != nil {
			// Per-file failures skip the file without aborting the run.
			if ctx.Err() == nil {
				log.Warn("file skipped", "path", paths[i], "error", errSlots[i])
				result.Errors = append(result.Errors, errSlots[i])
			}
			continue
		}
		if slots[i].Path == "" {
			continue // job never dispatched due to cancellation
		}
		result.AddFile(slots[i])
	}
	return result
}

func logSummary(log *slog.Logger, r *types.SearchResult) {
	log.Info("search complete",
		"matches", r.TotalMatches,
		"files_scanned", r.TotalFilesScanned,
		"files_matched", r.TotalFilesMatched,
		"skipped", len(r.Errors))
}
