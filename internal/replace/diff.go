// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package replace

import (
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/petar-djukic/goscout/pkg/types"
)

// diffFromBackup diffs a just-rewritten file against its backup copy.
func diffFromBackup(pair types.BackupPair) (types.FileDiff, error) {
	oldData, err := os.ReadFile(pair.BackupPath)
	if err != nil {
		return types.FileDiff{}, err
	}
	newData, err := os.ReadFile(pair.OriginalPath)
	if err != nil {
		return types.FileDiff{}, err
	}
	return generateFileDiff(string(oldData), string(newData), pair.OriginalPath), nil
}

// generateFileDiff produces line-level hunks between two contents. Line
// endings are normalized to LF before diffing.
func generateFileDiff(oldContent, newContent, path string) types.FileDiff {
	oldContent = strings.ReplaceAll(oldContent, "\r\n", "\n")
	newContent = strings.ReplaceAll(newContent, "\r\n", "\n")

	dmp := diffmatchpatch.New()
	a, b, lineArr := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArr)

	fd := types.FileDiff{Path: path}
	oldLine, newLine := 1, 1
	var hunk *types.DiffHunk

	flush := func() {
		if hunk != nil {
			fd.Hunks = append(fd.Hunks, *hunk)
			hunk = nil
		}
	}
	open := func() {
		if hunk == nil {
			hunk = &types.DiffHunk{OldStart: oldLine, NewStart: newLine}
		}
	}

	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			oldLine += len(lines)
			newLine += len(lines)
		case diffmatchpatch.DiffDelete:
			open()
			hunk.OldLines = append(hunk.OldLines, lines...)
			oldLine += len(lines)
		case diffmatchpatch.DiffInsert:
			open()
			hunk.NewLines = append(hunk.NewLines, lines...)
			newLine += len(lines)
		}
	}
	flush()
	return fd
}

// splitLines splits on LF, dropping the empty tail produced by a trailing
// newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
