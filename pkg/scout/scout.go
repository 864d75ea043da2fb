// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package scout is the public entry point of the goscout engine: code
// search across a tree, in-place replacement with undo, and undo-history
// management.
package scout

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/petar-djukic/goscout/internal/cache"
	"github.com/petar-djukic/goscout/internal/engine"
	"github.com/petar-djukic/goscout/internal/replace"
	"github.com/petar-djukic/goscout/pkg/types"
)

// SearchOptions mirrors the search command surface. Threads follows the
// thread-count contract: positive = worker count, -1 = not set, defaulting
// to the number of logical CPUs; zero and values below -1 are invalid.
type SearchOptions struct {
	Patterns       []types.PatternDefinition
	Root           string
	IgnorePatterns []string
	Extensions     []string
	MaxDepth       int
	FollowSymlinks bool

	Threads       int
	ContextBefore int
	ContextAfter  int
	Encoding      types.EncodingMode

	Incremental   bool
	CachePath     string
	CacheStrategy string
	MaxCacheSize  int64
	Compress      bool

	Logger *slog.Logger
}

// Search validates the options and runs the engine.
func Search(ctx context.Context, opts SearchOptions) (*types.SearchResult, error) {
	if err := validateCommon(opts.Root, opts.Threads, len(opts.Patterns)); err != nil {
		return nil, err
	}
	strategy, err := cache.ParseStrategy(opts.CacheStrategy)
	if err != nil {
		return nil, err
	}

	return engine.Search(ctx, engine.Config{
		Patterns:       opts.Patterns,
		Root:           opts.Root,
		IgnorePatterns: opts.IgnorePatterns,
		Extensions:     opts.Extensions,
		MaxDepth:       opts.MaxDepth,
		FollowSymlinks: opts.FollowSymlinks,
		Threads:        opts.Threads,
		ContextBefore:  opts.ContextBefore,
		ContextAfter:   opts.ContextAfter,
		Encoding:       opts.Encoding,
		Incremental:    opts.Incremental,
		CachePath:      opts.CachePath,
		CacheStrategy:  strategy,
		MaxCacheSize:   opts.MaxCacheSize,
		Compress:       opts.Compress,
		Logger:         opts.Logger,
	})
}

// ReplaceOptions mirrors the replace command surface. Threads follows the
// same contract as SearchOptions.Threads.
type ReplaceOptions struct {
	Patterns []replace.ReplacementPattern
	Targets  []string // files and/or directories

	DryRun           bool
	Backup           bool
	BackupDir        string
	PreserveMetadata bool
	Preview          bool
	UndoDir          string
	Threads          int

	Logger *slog.Logger
}

// ReplaceResult reports what a replace run did (or would do).
type ReplaceResult struct {
	Record       *types.UndoRecord
	Previews     []types.PreviewResult
	FilesPlanned int
	TotalEdits   int
}

// Replace plans and applies replacements over the target files. Directory
// targets are expanded through the walker with default filters.
func Replace(ctx context.Context, opts ReplaceOptions) (*ReplaceResult, error) {
	if len(opts.Patterns) == 0 {
		return nil, types.ErrNoPatterns
	}
	if err := validateThreads(opts.Threads); err != nil {
		return nil, err
	}

	files, err := expandTargets(ctx, opts)
	if err != nil {
		return nil, err
	}

	planner, err := replace.NewPlanner(opts.Patterns)
	if err != nil {
		return nil, err
	}
	plans, err := planner.PlanFiles(files)
	if err != nil {
		return nil, err
	}

	result := &ReplaceResult{FilesPlanned: len(plans)}
	for _, plan := range plans {
		result.TotalEdits += len(plan.Tasks)
	}
	if len(plans) == 0 {
		return result, nil
	}

	if opts.Preview || opts.DryRun {
		previews, err := replace.Preview(plans)
		if err != nil {
			return nil, err
		}
		result.Previews = previews
	}

	exec := replace.NewExecutor(replace.ExecutorConfig{
		Backup:           opts.Backup,
		BackupDir:        opts.BackupDir,
		DryRun:           opts.DryRun,
		PreserveMetadata: opts.PreserveMetadata,
		UndoDir:          opts.UndoDir,
		Threads:          opts.Threads,
		Logger:           opts.Logger,
	})
	record, err := exec.Apply(ctx, plans, describe(opts.Patterns))
	if err != nil {
		return nil, err
	}
	result.Record = record
	return result, nil
}

// ListUndo returns the undo history in chronological order.
func ListUndo(undoDir string, logger *slog.Logger) ([]types.UndoRecord, error) {
	return replace.NewUndoManager(undoDir, logger).List()
}

// Undo reverts one recorded operation, or all of them.
func Undo(undoDir string, id int64, all, dryRun bool, logger *slog.Logger) ([]types.UndoRecord, error) {
	mgr := replace.NewUndoManager(undoDir, logger)
	if all {
		return mgr.UndoAll(dryRun)
	}
	rec, err := mgr.Undo(id, dryRun)
	if err != nil {
		return nil, err
	}
	return []types.UndoRecord{rec}, nil
}

func validateCommon(root string, threads, patternCount int) error {
	if patternCount == 0 {
		return types.ErrNoPatterns
	}
	if err := validateThreads(threads); err != nil {
		return err
	}
	if root == "" {
		return fmt.Errorf("root path is required")
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	return nil
}

// validateThreads enforces the thread-count contract: positive values name
// a worker count, -1 means "not set" and defaults to the number of logical
// CPUs downstream. An explicit zero is invalid.
func validateThreads(threads int) error {
	switch {
	case threads == 0:
		return fmt.Errorf("thread count zero is invalid; omit the option to use all CPUs")
	case threads < -1:
		return fmt.Errorf("thread count must be positive, got %d", threads)
	}
	return nil
}

// expandTargets resolves directory targets to their contained files.
func expandTargets(ctx context.Context, opts ReplaceOptions) ([]string, error) {
	var files []string
	for _, target := range opts.Targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, &types.FileError{Path: target, Err: err}
		}
		if !info.IsDir() {
			files = append(files, target)
			continue
		}
		sub, err := walkDir(ctx, target, opts.Logger)
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no target files")
	}
	return files, nil
}

func describe(patterns []replace.ReplacementPattern) string {
	first := patterns[0]
	desc := fmt.Sprintf("replace %q with %q", first.Definition.Text, first.Template)
	if len(patterns) > 1 {
		desc = fmt.Sprintf("%s (+%d more)", desc, len(patterns)-1)
	}
	return desc
}
