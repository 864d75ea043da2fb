// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func literalPattern(text, replacement string) ReplacementPattern {
	return ReplacementPattern{
		Definition: types.NewPattern(text, false, types.BoundaryNone),
		Template:   replacement,
	}
}

func newExecutor(t *testing.T, mutate ...func(*ExecutorConfig)) *Executor {
	t.Helper()
	undoDir := filepath.Join(t.TempDir(), "undo")
	cfg := ExecutorConfig{UndoDir: undoDir, Logger: logging.Discard()}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewExecutor(cfg)
}

func TestPlanFileLiteral(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "old_api call\nuse old_api here\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)

	plan, err := planner.PlanFile(path)
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, 0, plan.Tasks[0].Start)
	assert.Equal(t, 7, plan.Tasks[0].End)
	assert.Equal(t, "new_api", plan.Tasks[0].Replacement)
	assert.Less(t, plan.Tasks[0].End, plan.Tasks[1].Start+1, "tasks must not overlap")
}

func TestPlanFileNoMatchesReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "nothing relevant\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("absent", "x")})
	require.NoError(t, err)
	plan, err := planner.PlanFile(path)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlannerRejectsEmptyPattern(t *testing.T) {
	_, err := NewPlanner([]ReplacementPattern{literalPattern("  ", "x")})
	var perr *types.InvalidPatternError
	assert.ErrorAs(t, err, &perr)
}

func TestPlannerValidatesCaptureReferences(t *testing.T) {
	_, err := NewPlanner([]ReplacementPattern{{
		Definition: types.NewPattern(`fn\s+(\w+)`, true, types.BoundaryNone),
		Template:   "fn $2",
	}})
	var perr *types.InvalidPatternError
	require.ErrorAs(t, err, &perr)

	// $1 and $0 resolve; $$ is the literal-dollar escape.
	_, err = NewPlanner([]ReplacementPattern{{
		Definition: types.NewPattern(`fn\s+(\w+)`, true, types.BoundaryNone),
		Template:   "fn new_$1 $$ $0",
	}})
	assert.NoError(t, err)
}

func TestPlannerRejectsOverlappingTasks(t *testing.T) {
	dir := t.TempDir()
	// Both patterns hit the shared "abcd" region.
	path := writeFile(t, dir, "a.txt", "xx abcd yy\n")

	planner, err := NewPlanner([]ReplacementPattern{
		literalPattern("abc", "1"),
		literalPattern("bcd", "2"),
	})
	require.NoError(t, err)

	_, err = planner.PlanFile(path)
	var cerr *types.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, path, cerr.Path)
	assert.Equal(t, 1, cerr.Line)
}

func TestApplyRegexWithCaptures(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "code.rs", "fn foo() {}\nfn bar() {}\n")

	planner, err := NewPlanner([]ReplacementPattern{{
		Definition: types.NewPattern(`fn\s+(\w+)`, true, types.BoundaryNone),
		Template:   "fn new_$1",
	}})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	exec := newExecutor(t)
	_, err = exec.Apply(context.Background(), plans, "rename fns")
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fn new_foo() {}\nfn new_bar() {}\n", string(got))
}

func TestApplyPreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "script.sh", "run old_api\n")
	require.NoError(t, os.Chmod(path, 0o755))

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)

	exec := newExecutor(t)
	_, err = exec.Apply(context.Background(), plans, "perm probe")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "old_api\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)

	undoDir := filepath.Join(t.TempDir(), "undo")
	exec := NewExecutor(ExecutorConfig{UndoDir: undoDir, DryRun: true, Backup: true, Logger: logging.Discard()})
	rec, err := exec.Apply(context.Background(), plans, "dry")
	require.NoError(t, err)
	assert.True(t, rec.DryRun)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old_api\n", string(got))
	assert.NoDirExists(t, undoDir)
}

func TestBackupAndUndoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := "alpha old_api beta\nold_api\ntail\n"
	var paths []string
	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		paths = append(paths, writeFile(t, dir, name, original))
	}

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles(paths)
	require.NoError(t, err)
	require.Len(t, plans, 3)

	undoDir := filepath.Join(t.TempDir(), "undo")
	exec := NewExecutor(ExecutorConfig{UndoDir: undoDir, Backup: true, Logger: logging.Discard()})
	rec, err := exec.Apply(context.Background(), plans, "old_api -> new_api")
	require.NoError(t, err)
	require.Len(t, rec.Backups, 3)
	assert.NotEmpty(t, rec.Diffs)

	for _, path := range paths {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(got), "old_api")
	}

	mgr := NewUndoManager(undoDir, logging.Discard())
	records, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = mgr.Undo(records[0].ID, false)
	require.NoError(t, err)

	for _, path := range paths {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, original, string(got), "undo must restore byte-identical content")
	}

	// Backups and the record are gone afterwards.
	records, err = mgr.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUndoDryRunLeavesFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "old_api\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)

	undoDir := filepath.Join(t.TempDir(), "undo")
	exec := NewExecutor(ExecutorConfig{UndoDir: undoDir, Backup: true, Logger: logging.Discard()})
	rec, err := exec.Apply(context.Background(), plans, "probe")
	require.NoError(t, err)

	mgr := NewUndoManager(undoDir, logging.Discard())
	_, err = mgr.Undo(rec.ID, true)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "old_api", "dry-run undo must not restore")

	records, err := mgr.List()
	require.NoError(t, err)
	assert.Len(t, records, 1, "dry-run undo must keep the record")
}

func TestUndoMissingBackupReportsRemaining(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "old_api\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)

	undoDir := filepath.Join(t.TempDir(), "undo")
	exec := NewExecutor(ExecutorConfig{UndoDir: undoDir, Backup: true, Logger: logging.Discard()})
	rec, err := exec.Apply(context.Background(), plans, "probe")
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.Backups[0].BackupPath))

	mgr := NewUndoManager(undoDir, logging.Discard())
	_, err = mgr.Undo(rec.ID, false)
	var uerr *types.UndoError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, []string{path}, uerr.Remaining)
}

func TestStreamingStrategyMatchesInMemory(t *testing.T) {
	dir := t.TempDir()
	content := "head old_api mid old_api tail\n"
	pathA := writeFile(t, dir, "mem.txt", content)
	pathB := writeFile(t, dir, "stream.txt", content)

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "longer_new_api")})
	require.NoError(t, err)

	planA, err := planner.PlanFile(pathA)
	require.NoError(t, err)
	planB, err := planner.PlanFile(pathB)
	require.NoError(t, err)

	exec := newExecutor(t)
	require.NoError(t, exec.applyInMemory(planA))
	require.NoError(t, exec.applyStreaming(planB))

	a, err := os.ReadFile(pathA)
	require.NoError(t, err)
	b, err := os.ReadFile(pathB)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, "head longer_new_api mid longer_new_api tail\n", string(a))
}

func TestMemoryMappedStrategyMatchesInMemory(t *testing.T) {
	dir := t.TempDir()
	content := "first old_api\nsecond old_api end"
	pathA := writeFile(t, dir, "mem.txt", content)
	pathB := writeFile(t, dir, "mmap.txt", content)

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "x")})
	require.NoError(t, err)

	planA, err := planner.PlanFile(pathA)
	require.NoError(t, err)
	planB, err := planner.PlanFile(pathB)
	require.NoError(t, err)

	exec := newExecutor(t)
	require.NoError(t, exec.applyInMemory(planA))
	require.NoError(t, exec.applyMemoryMapped(planB))

	a, err := os.ReadFile(pathA)
	require.NoError(t, err)
	b, err := os.ReadFile(pathB)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestPreviewListsChangedLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "keep\nold_api here\nkeep too\n")

	planner, err := NewPlanner([]ReplacementPattern{literalPattern("old_api", "new_api")})
	require.NoError(t, err)
	plans, err := planner.PlanFiles([]string{path})
	require.NoError(t, err)

	previews, err := Preview(plans)
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, []int{2}, previews[0].LineNumbers)
	assert.Equal(t, []string{"old_api here"}, previews[0].OriginalLines)
	assert.Equal(t, []string{"new_api here"}, previews[0].NewLines)

	// Preview never modifies the file.
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep\nold_api here\nkeep too\n", string(got))
}

func TestGenerateFileDiff(t *testing.T) {
	fd := generateFileDiff("a\nb\nc\n", "a\nB\nc\n", "f.txt")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 2, fd.Hunks[0].OldStart)
	assert.Equal(t, []string{"b"}, fd.Hunks[0].OldLines)
	assert.Equal(t, []string{"B"}, fd.Hunks[0].NewLines)
}

func TestGenerateFileDiffNoChanges(t *testing.T) {
	fd := generateFileDiff("same\n", "same\n", "f.txt")
	assert.Empty(t, fd.Hunks)
}
