// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseModes(t *testing.T) {
	b, err := ParseBoundaryMode("whole-words")
	assert.NoError(t, err)
	assert.Equal(t, BoundaryWholeWords, b)

	_, err = ParseBoundaryMode("sideways")
	assert.Error(t, err)

	h, err := ParseHyphenMode("")
	assert.NoError(t, err)
	assert.Equal(t, HyphenJoining, h, "joining is the default")

	e, err := ParseEncodingMode("lossy")
	assert.NoError(t, err)
	assert.Equal(t, EncodingLossy, e)
}

func TestFileSignatureEqual(t *testing.T) {
	now := time.Now()
	a := FileSignature{Size: 10, ModTime: now}

	assert.True(t, a.Equal(FileSignature{Size: 10, ModTime: now}))
	assert.False(t, a.Equal(FileSignature{Size: 11, ModTime: now}))
	assert.False(t, a.Equal(FileSignature{Size: 10, ModTime: now.Add(time.Second)}))

	// With hashes on both sides, the hash decides even when mtimes differ.
	h1 := FileSignature{Size: 10, ModTime: now, Hash: "aa"}
	h2 := FileSignature{Size: 10, ModTime: now.Add(time.Hour), Hash: "aa"}
	assert.True(t, h1.Equal(h2))
	assert.False(t, h1.Equal(FileSignature{Size: 10, ModTime: now, Hash: "bb"}))
}

func TestSearchResultAddFile(t *testing.T) {
	var r SearchResult
	r.AddFile(FileResult{Path: "a", Matches: []Match{{LineNumber: 1}}})
	r.AddFile(FileResult{Path: "b"})

	assert.Equal(t, 2, r.TotalFilesScanned)
	assert.Equal(t, 1, r.TotalFilesMatched)
	assert.Equal(t, 1, r.TotalMatches)
}

func TestUndoRecordString(t *testing.T) {
	rec := UndoRecord{ID: 42, Description: "swap", FileCount: 3, TotalBytes: 100}
	assert.Equal(t, "42: swap: 3 files, 100 bytes", rec.String())

	rec.DryRun = true
	assert.Contains(t, rec.String(), "(dry run)")
}
