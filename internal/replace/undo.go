// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replace

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

// ErrRecordNotFound is returned when an undo id has no record document.
var ErrRecordNotFound = errors.New("undo record not found")

// UndoManager lists, previews, and reverts prior replacement operations
// from the undo directory.
type UndoManager struct {
	UndoDir string
	Logger  *slog.Logger
}

// NewUndoManager builds a manager for the directory, defaulting to
// DefaultUndoDir.
func NewUndoManager(undoDir string, logger *slog.Logger) *UndoManager {
	if undoDir == "" {
		undoDir = DefaultUndoDir
	}
	return &UndoManager{UndoDir: undoDir, Logger: logging.OrDefault(logger)}
}

// List returns all undo records in chronological order. Unparseable
// documents are skipped with a warning.
func (u *UndoManager) List() ([]types.UndoRecord, error) {
	entries, err := os.ReadDir(u.UndoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &types.UndoError{Err: err}
	}

	var records []types.UndoRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(u.UndoDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.OrDefault(u.Logger).Warn("unreadable undo record", "path", path, "error", err)
			continue
		}
		var rec types.UndoRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.OrDefault(u.Logger).Warn("malformed undo record", "path", path, "error", err)
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Get loads one record by id.
func (u *UndoManager) Get(id int64) (types.UndoRecord, error) {
	path := filepath.Join(u.UndoDir, fmt.Sprintf("%d.json", id))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.UndoRecord{}, &types.UndoError{ID: id, Err: ErrRecordNotFound}
		}
		return types.UndoRecord{}, &types.UndoError{ID: id, Err: err}
	}
	var rec types.UndoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.UndoRecord{}, &types.UndoError{ID: id, Err: err}
	}
	return rec, nil
}

// Undo restores every file of a record from its backup and removes the
// backups and the record document. With dryRun, it only verifies and
// returns the record untouched.
//
// Restoration is atomic per file: the backup is copied to a temp file next
// to the original, then renamed onto it. On partial failure, already
// restored files stay restored and the error lists the remainder.
func (u *UndoManager) Undo(id int64, dryRun bool) (types.UndoRecord, error) {
	rec, err := u.Get(id)
	if err != nil {
		return types.UndoRecord{}, err
	}

	for _, pair := range rec.Backups {
		if _, err := os.Stat(pair.BackupPath); err != nil {
			return rec, &types.UndoError{
				ID:        id,
				Remaining: allOriginals(rec.Backups),
				Err:       fmt.Errorf("backup missing: %s", pair.BackupPath),
			}
		}
	}
	if dryRun {
		return rec, nil
	}

	for i, pair := range rec.Backups {
		if err := restoreFile(pair); err != nil {
			return rec, &types.UndoError{
				ID:        id,
				Remaining: allOriginals(rec.Backups[i:]),
				Err:       err,
			}
		}
	}

	for _, pair := range rec.Backups {
		if err := os.Remove(pair.BackupPath); err != nil {
			logging.OrDefault(u.Logger).Warn("backup not removed", "path", pair.BackupPath, "error", err)
		}
	}
	recordPath := filepath.Join(u.UndoDir, fmt.Sprintf("%d.json", id))
	if err := os.Remove(recordPath); err != nil {
		logging.OrDefault(u.Logger).Warn("undo record not removed", "path", recordPath, "error", err)
	}
	return rec, nil
}

// UndoAll reverts every recorded operation, newest first.
func (u *UndoManager) UndoAll(dryRun bool) ([]types.UndoRecord, error) {
	records, err := u.List()
	if err != nil {
		return nil, err
	}
	var done []types.UndoRecord
	for i := len(records) - 1; i >= 0; i-- {
		rec, err := u.Undo(records[i].ID, dryRun)
		if err != nil {
			return done, err
		}
		done = append(done, rec)
	}
	return done, nil
}

func restoreFile(pair types.BackupPair) error {
	dir := filepath.Dir(pair.OriginalPath)
	tmp, err := os.CreateTemp(dir, ".goscout-undo-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := copyFile(pair.BackupPath, tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if info, err := os.Stat(pair.OriginalPath); err == nil {
		os.Chmod(tmpPath, info.Mode().Perm())
	}
	if err := os.Rename(tmpPath, pair.OriginalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func allOriginals(pairs []types.BackupPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.OriginalPath
	}
	return out
}
