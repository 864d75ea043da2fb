// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replace

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

var errBadRange = errors.New("replacement range outside file bounds")

// DefaultUndoDir is where undo records and backups live unless overridden.
const DefaultUndoDir = ".goscout/undo"

// ExecutorConfig configures how plans are applied.
type ExecutorConfig struct {
	Backup           bool
	BackupDir        string // default: <UndoDir>/backups
	DryRun           bool
	PreserveMetadata bool
	UndoDir          string // default: DefaultUndoDir
	Threads          int    // <= 0 = 1 worker per plan up to 4; explicit zero is rejected upstream
	Metrics          *metrics.MemoryMetrics
	Logger           *slog.Logger
}

// Executor applies replacement plans atomically. The temp-file rename is
// the single commit point; any failure before it leaves the original
// untouched.
type Executor struct {
	cfg ExecutorConfig
	mem *metrics.MemoryMetrics
	log *slog.Logger
}

// NewExecutor builds an executor, applying config defaults.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.UndoDir == "" {
		cfg.UndoDir = DefaultUndoDir
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.UndoDir, "backups")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Executor{cfg: cfg, mem: cfg.Metrics, log: logging.OrDefault(cfg.Logger)}
}

// Apply executes all plans and, when backups were made, persists an
// UndoRecord describing the operation. Dry-run mode touches nothing and
// returns a record with the DryRun flag set for display purposes only.
func (e *Executor) Apply(ctx context.Context, plans []*types.FileReplacementPlan, description string) (*types.UndoRecord, error) {
	id := time.Now().UnixMilli()

	if e.cfg.DryRun {
		return &types.UndoRecord{
			ID:          id,
			Description: description,
			FileCount:   len(plans),
			DryRun:      true,
		}, nil
	}

	threads := e.cfg.Threads
	if threads <= 0 {
		threads = min(len(plans), 4)
	}
	if threads < 1 {
		threads = 1
	}

	var (
		mu      sync.Mutex
		backups []types.BackupPair
		total   int64
	)

	jobs := make(chan *types.FileReplacementPlan)
	errs := make([]error, 0, len(plans))
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range jobs {
				backupPath, err := e.applyPlan(plan, id)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else if backupPath != "" {
					backups = append(backups, types.BackupPair{
						OriginalPath: plan.Path,
						BackupPath:   backupPath,
					})
					total += plan.FileSize
				}
				mu.Unlock()
			}
		}()
	}
	for _, plan := range plans {
		if ctx.Err() != nil {
			break
		}
		jobs <- plan
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &types.UndoRecord{
		ID:          id,
		Description: description,
		Backups:     backups,
		TotalBytes:  total,
		FileCount:   len(plans),
	}

	if len(backups) > 0 {
		for _, pair := range backups {
			diff, err := diffFromBackup(pair)
			if err == nil && len(diff.Hunks) > 0 {
				record.Diffs = append(record.Diffs, diff)
			}
		}
		if err := e.writeRecord(record); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// applyPlan rewrites one file with the size-appropriate strategy, creating
// a backup first when enabled. Returns the backup path, if any.
func (e *Executor) applyPlan(plan *types.FileReplacementPlan, id int64) (string, error) {
	backupPath := ""
	if e.cfg.Backup {
		var err error
		if backupPath, err = e.createBackup(plan.Path, id); err != nil {
			return "", &types.ReplaceError{Path: plan.Path, Err: err}
		}
	}

	var err error
	switch {
	case plan.FileSize < metrics.SmallFileThreshold:
		err = e.applyInMemory(plan)
	case plan.FileSize >= metrics.LargeFileThreshold:
		err = e.applyMemoryMapped(plan)
	default:
		err = e.applyStreaming(plan)
	}
	if err != nil {
		return "", err
	}
	return backupPath, nil
}

// applyInMemory loads the file and applies edits in reverse order so
// earlier offsets stay valid.
func (e *Executor) applyInMemory(plan *types.FileReplacementPlan) error {
	data, err := os.ReadFile(plan.Path)
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	e.mem.RecordAllocation(uint64(len(data)))
	defer e.mem.RecordDeallocation(uint64(len(data)))

	for i := len(plan.Tasks) - 1; i >= 0; i-- {
		task := plan.Tasks[i]
		if task.End > len(data) {
			return &types.ReplaceError{Path: plan.Path, Err: errBadRange}
		}
		data = append(data[:task.Start], append([]byte(task.Replacement), data[task.End:]...)...)
	}

	return e.commit(plan, data)
}

// applyStreaming copies the file through a reader/writer pair, emitting
// replacements in offset order.
func (e *Executor) applyStreaming(plan *types.FileReplacementPlan) error {
	src, err := os.Open(plan.Path)
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(plan.Path), ".goscout-*.tmp")
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { tmp.Close(); os.Remove(tmpPath) }

	writer := bufio.NewWriter(tmp)
	var cur int64
	for _, task := range plan.Tasks {
		if _, err := io.CopyN(writer, src, int64(task.Start)-cur); err != nil {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
		if _, err := writer.WriteString(task.Replacement); err != nil {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
		if _, err := src.Seek(int64(task.End), io.SeekStart); err != nil {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
		cur = int64(task.End)
	}
	if _, err := io.Copy(writer, src); err != nil {
		cleanup()
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}

	return e.commitTemp(plan, tmpPath)
}

// applyMemoryMapped maps the source read-only and writes a new file from
// slices of the mapping. The mapping is released before the rename to
// satisfy platforms that lock mapped files.
func (e *Executor) applyMemoryMapped(plan *types.FileReplacementPlan) error {
	src, err := os.Open(plan.Path)
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	defer src.Close()

	m, err := mmap.Map(src, mmap.RDONLY, 0)
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	e.mem.RecordMmap(uint64(len(m)))
	mapped := true
	release := func() {
		if mapped {
			e.mem.RecordMunmap(uint64(len(m)))
			m.Unmap()
			mapped = false
		}
	}
	defer release()

	tmp, err := os.CreateTemp(filepath.Dir(plan.Path), ".goscout-*.tmp")
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { tmp.Close(); os.Remove(tmpPath) }

	writer := bufio.NewWriter(tmp)
	data := []byte(m)
	cur := 0
	for _, task := range plan.Tasks {
		if task.End > len(data) {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: errBadRange}
		}
		if _, err := writer.Write(data[cur:task.Start]); err != nil {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
		if _, err := writer.WriteString(task.Replacement); err != nil {
			cleanup()
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
		cur = task.End
	}
	if _, err := writer.Write(data[cur:]); err != nil {
		cleanup()
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}

	release()
	return e.commitTemp(plan, tmpPath)
}

// commit writes data to a temp file next to the target and renames it into
// place.
func (e *Executor) commit(plan *types.FileReplacementPlan, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(plan.Path), ".goscout-*.tmp")
	if err != nil {
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	return e.commitTemp(plan, tmpPath)
}

// commitTemp finalizes a prepared temp file: restore metadata, then rename
// onto the original. Rename is the single commit point. The temp file is
// always created in the target's own directory, so the rename never crosses
// a mount boundary; there is no copy fallback, and a failed rename removes
// the temp file and returns a ReplaceError.
func (e *Executor) commitTemp(plan *types.FileReplacementPlan, tmpPath string) error {
	perm := plan.Mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	if e.cfg.PreserveMetadata {
		if err := os.Chtimes(tmpPath, time.Now(), plan.ModTime); err != nil {
			os.Remove(tmpPath)
			return &types.ReplaceError{Path: plan.Path, Err: err}
		}
	}
	if err := os.Rename(tmpPath, plan.Path); err != nil {
		os.Remove(tmpPath)
		return &types.ReplaceError{Path: plan.Path, Err: err}
	}
	return nil
}

// createBackup copies the original into the backup directory under
// <basename>.<id>.bak and returns the backup path.
func (e *Executor) createBackup(path string, id int64) (string, error) {
	if err := os.MkdirAll(e.cfg.BackupDir, 0o755); err != nil {
		return "", err
	}
	backupPath := filepath.Join(e.cfg.BackupDir, fmt.Sprintf("%s.%d.bak", filepath.Base(path), id))
	if err := copyFile(path, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

// writeRecord persists the undo record as <id>.json in the undo directory,
// probing forward when a record with the same millisecond already exists.
func (e *Executor) writeRecord(record *types.UndoRecord) error {
	if err := os.MkdirAll(e.cfg.UndoDir, 0o755); err != nil {
		return &types.ReplaceError{Path: e.cfg.UndoDir, Err: err}
	}
	for {
		recordPath := filepath.Join(e.cfg.UndoDir, fmt.Sprintf("%d.json", record.ID))
		if _, err := os.Stat(recordPath); err == nil {
			record.ID++
			continue
		}
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return &types.ReplaceError{Path: recordPath, Err: err}
		}
		if err := atomicWriteFile(recordPath, data, 0o644); err != nil {
			return &types.ReplaceError{Path: recordPath, Err: err}
		}
		e.log.Debug("undo record written", "id", record.ID, "files", record.FileCount)
		return nil
	}
}

// Preview computes the changed-line pairs of every plan without touching
// the filesystem.
func Preview(plans []*types.FileReplacementPlan) ([]types.PreviewResult, error) {
	var results []types.PreviewResult
	for _, plan := range plans {
		data, err := os.ReadFile(plan.Path)
		if err != nil {
			return nil, &types.FileError{Path: plan.Path, Err: err}
		}
		updated := applyTasksInMemory(data, plan.Tasks)

		oldLines := splitLines(string(data))
		newLines := splitLines(string(updated))
		pr := types.PreviewResult{Path: plan.Path}
		n := min(len(oldLines), len(newLines))
		for i := 0; i < n; i++ {
			if oldLines[i] != newLines[i] {
				pr.LineNumbers = append(pr.LineNumbers, i+1)
				pr.OriginalLines = append(pr.OriginalLines, oldLines[i])
				pr.NewLines = append(pr.NewLines, newLines[i])
			}
		}
		if len(pr.LineNumbers) > 0 {
			results = append(results, pr)
		}
	}
	return results, nil
}

// applyTasksInMemory applies sorted tasks in reverse order to a copy of
// data.
func applyTasksInMemory(data []byte, tasks []types.ReplacementTask) []byte {
	out := append([]byte(nil), data...)
	for i := len(tasks) - 1; i >= 0; i-- {
		task := tasks[i]
		out = append(out[:task.Start], append([]byte(task.Replacement), out[task.End:]...)...)
	}
	return out
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// atomicWriteFile is the temp-file + rename write used for documents.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".goscout-doc-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
