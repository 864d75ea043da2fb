// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"io/fs"
	"time"
)

// ReplacementTask is one edit within a file: replace the byte range
// [Start, End) of the original content with Replacement.
// Invariant: Start < End and End <= file size at plan time.
type ReplacementTask struct {
	Path         string `json:"path"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Replacement  string `json:"replacement"`
	PatternIndex int    `json:"pattern_index"`
}

// FileReplacementPlan is the ordered, strictly non-overlapping set of edits
// for a single file, plus the metadata needed to apply them.
type FileReplacementPlan struct {
	Path     string            `json:"path"`
	Tasks    []ReplacementTask `json:"tasks"` // sorted ascending by Start
	FileSize int64             `json:"file_size"`
	Mode     fs.FileMode       `json:"mode"`
	ModTime  time.Time         `json:"mod_time"`
}

// BackupPair links a modified file to its backup copy.
type BackupPair struct {
	OriginalPath string `json:"original_path"`
	BackupPath   string `json:"backup_path"`
}

// DiffHunk is a consecutive run of changed lines, 1-based.
type DiffHunk struct {
	OldStart int      `json:"old_start"`
	NewStart int      `json:"new_start"`
	OldLines []string `json:"old_lines"`
	NewLines []string `json:"new_lines"`
}

// FileDiff holds the line-level hunks for one modified file.
type FileDiff struct {
	Path  string     `json:"path"`
	Hunks []DiffHunk `json:"hunks"`
}

// UndoRecord is the on-disk document linking an applied replacement
// operation to its backup files. One record per operation; the ID is the
// unix-millisecond timestamp of the operation.
type UndoRecord struct {
	ID          int64        `json:"id"`
	Description string       `json:"description"`
	Backups     []BackupPair `json:"backups"`
	TotalBytes  int64        `json:"total_bytes"`
	FileCount   int          `json:"file_count"`
	DryRun      bool         `json:"dry_run"`
	Diffs       []FileDiff   `json:"diffs,omitempty"`
}

func (r UndoRecord) String() string {
	suffix := ""
	if r.DryRun {
		suffix = " (dry run)"
	}
	return fmt.Sprintf("%d: %s: %d files, %d bytes%s",
		r.ID, r.Description, r.FileCount, r.TotalBytes, suffix)
}

// PreviewResult lists the changed lines of one file without modifying it.
type PreviewResult struct {
	Path          string   `json:"path"`
	LineNumbers   []int    `json:"line_numbers"` // 1-based
	OriginalLines []string `json:"original_lines"`
	NewLines      []string `json:"new_lines"`
}
