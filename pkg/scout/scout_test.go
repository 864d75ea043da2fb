// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package scout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/goscout/internal/replace"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

func TestSearchEndToEnd(t *testing.T) {
	root := t.TempDir()
	content := "// TODO: fix\nlet todos = 1\nTODO-later\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.rs"), []byte(content), 0o644))

	res, err := Search(context.Background(), SearchOptions{
		Patterns: []types.PatternDefinition{{
			Text:     "TODO",
			Boundary: types.BoundaryWholeWords,
			Hyphens:  types.HyphenJoining,
		}},
		Root:    root,
		Threads: -1,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)

	// "todos" fails on wordness; "TODO-later" fails because the hyphen
	// joins. Only line 1 matches, at byte 3.
	require.Equal(t, 1, res.TotalMatches)
	m := res.Files[0].Matches[0]
	assert.Equal(t, 1, m.LineNumber)
	assert.Equal(t, 3, m.Start)
	assert.Equal(t, 7, m.End)
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		opts SearchOptions
	}{
		{"no patterns", SearchOptions{Root: "."}},
		{"explicit zero threads", SearchOptions{
			Patterns: []types.PatternDefinition{types.NewPattern("x", false, types.BoundaryNone)},
			Root:     ".",
			Threads:  0,
		}},
		{"negative thread count", SearchOptions{
			Patterns: []types.PatternDefinition{types.NewPattern("x", false, types.BoundaryNone)},
			Root:     ".",
			Threads:  -5,
		}},
		{"missing root", SearchOptions{
			Patterns: []types.PatternDefinition{types.NewPattern("x", false, types.BoundaryNone)},
			Root:     "/definitely/not/here/goscout",
			Threads:  -1,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = logging.Discard()
			_, err := Search(context.Background(), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestReplaceEndToEndWithUndo(t *testing.T) {
	root := t.TempDir()
	original := "fn foo() {}\nfn bar() {}\n"
	target := filepath.Join(root, "lib.rs")
	require.NoError(t, os.WriteFile(target, []byte(original), 0o644))

	undoDir := filepath.Join(t.TempDir(), "undo")
	res, err := Replace(context.Background(), ReplaceOptions{
		Patterns: []replace.ReplacementPattern{{
			Definition: types.NewPattern(`fn\s+(\w+)`, true, types.BoundaryNone),
			Template:   "fn new_$1",
		}},
		Targets: []string{target},
		Backup:  true,
		UndoDir: undoDir,
		Threads: -1,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, 2, res.TotalEdits)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "fn new_foo() {}\nfn new_bar() {}\n", string(got))

	recs, err := Undo(undoDir, res.Record.ID, false, false, logging.Discard())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	restored, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, string(restored))
}

func TestReplaceDirectoryTarget(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("old_api\n"), 0o644))
	}

	res, err := Replace(context.Background(), ReplaceOptions{
		Patterns: []replace.ReplacementPattern{{
			Definition: types.NewPattern("old_api", false, types.BoundaryNone),
			Template:   "new_api",
		}},
		Targets: []string{root},
		UndoDir: filepath.Join(t.TempDir(), "undo"),
		Threads: -1,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesPlanned)
}

func TestReplaceConflictRejectsWholeOperation(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("shared abcd token\n"), 0o644))

	undoDir := filepath.Join(t.TempDir(), "undo")
	_, err := Replace(context.Background(), ReplaceOptions{
		Patterns: []replace.ReplacementPattern{
			{Definition: types.NewPattern("abc", false, types.BoundaryNone), Template: "1"},
			{Definition: types.NewPattern("bcd", false, types.BoundaryNone), Template: "2"},
		},
		Targets: []string{target},
		Backup:  true,
		UndoDir: undoDir,
		Threads: -1,
		Logger:  logging.Discard(),
	})

	var cerr *types.ConflictError
	require.ErrorAs(t, err, &cerr)

	// No files touched, no backups or undo records created.
	got, rerr := os.ReadFile(target)
	require.NoError(t, rerr)
	assert.Equal(t, "shared abcd token\n", string(got))
	assert.NoDirExists(t, undoDir)
}
