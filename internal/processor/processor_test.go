// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/goscout/internal/matcher"
	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

func newProcessor(t *testing.T, defs []types.PatternDefinition, opts ...func(*Config)) *FileProcessor {
	t.Helper()
	set, err := matcher.NewSet(defs, nil)
	require.NoError(t, err)
	cfg := Config{Set: set, Logger: logging.Discard()}
	for _, o := range opts {
		o(&cfg)
	}
	return New(cfg)
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessSmallFile(t *testing.T) {
	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("pattern", false, types.BoundaryNone),
	})
	path := writeTemp(t, "no hit\npattern here\nagain pattern pattern\n")

	res, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)

	assert.Equal(t, 2, res.Matches[0].LineNumber)
	assert.Equal(t, 0, res.Matches[0].Start)
	assert.Equal(t, "pattern here", res.Matches[0].LineText)

	assert.Equal(t, 3, res.Matches[1].LineNumber)
	assert.Equal(t, 6, res.Matches[1].Start)
	assert.Equal(t, 3, res.Matches[2].LineNumber)
	assert.Equal(t, 14, res.Matches[2].Start)
	assert.Equal(t, int64(len("no hit\npattern here\nagain pattern pattern\n")), res.BytesScanned)
}

func TestLineTerminators(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantLines []int
		wantTexts []string
	}{
		{
			name:      "lf only",
			content:   "x\nx\n",
			wantLines: []int{1, 2},
			wantTexts: []string{"x", "x"},
		},
		{
			name:      "crlf",
			content:   "x\r\nx\r\n",
			wantLines: []int{1, 2},
			wantTexts: []string{"x", "x"},
		},
		{
			name:      "trailing partial line is scanned",
			content:   "a\nb\nx",
			wantLines: []int{3},
			wantTexts: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(t, []types.PatternDefinition{
				types.NewPattern("x", false, types.BoundaryNone),
			})
			res, err := p.ProcessFile(context.Background(), writeTemp(t, tt.content))
			require.NoError(t, err)
			require.Len(t, res.Matches, len(tt.wantLines))
			for i, m := range res.Matches {
				assert.Equal(t, tt.wantLines[i], m.LineNumber)
				assert.Equal(t, tt.wantTexts[i], m.LineText)
			}
		})
	}
}

func TestBufferedStrategyMatchesSmallStrategy(t *testing.T) {
	// Build a file just past the small threshold so it takes the buffered
	// path, and compare against the in-memory scan of the same content.
	var sb strings.Builder
	for sb.Len() < metrics.SmallFileThreshold+1024 {
		sb.WriteString("filler line with needle inside\n")
		sb.WriteString("plain filler\n")
	}
	content := sb.String()
	path := writeTemp(t, content)

	m := metrics.New()
	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("needle", false, types.BoundaryNone),
	}, func(c *Config) { c.Metrics = m })

	res, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)

	wantCount := strings.Count(content, "needle")
	assert.Len(t, res.Matches, wantCount)
	assert.Equal(t, uint64(1), m.Snapshot().BufferedFiles)

	small, err := p.processSmall(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, small.Matches, res.Matches)

	// Strictly monotonic (line, start) ordering.
	for i := 1; i < len(res.Matches); i++ {
		prev, cur := res.Matches[i-1], res.Matches[i]
		ok := cur.LineNumber > prev.LineNumber ||
			(cur.LineNumber == prev.LineNumber && cur.Start > prev.Start)
		assert.True(t, ok, "match %d out of order", i)
	}
}

func TestContextLines(t *testing.T) {
	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("hit", false, types.BoundaryNone),
	}, func(c *Config) {
		c.ContextBefore = 2
		c.ContextAfter = 1
	})
	path := writeTemp(t, "one\ntwo\nhit here\nfour\nfive\n")

	res, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	m := res.Matches[0]
	require.Len(t, m.ContextBefore, 2)
	assert.Equal(t, types.ContextLine{LineNumber: 1, Text: "one"}, m.ContextBefore[0])
	assert.Equal(t, types.ContextLine{LineNumber: 2, Text: "two"}, m.ContextBefore[1])
	require.Len(t, m.ContextAfter, 1)
	assert.Equal(t, types.ContextLine{LineNumber: 4, Text: "four"}, m.ContextAfter[0])
}

func TestContextAtFileStart(t *testing.T) {
	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("hit", false, types.BoundaryNone),
	}, func(c *Config) { c.ContextBefore = 3 })
	res, err := p.ProcessFile(context.Background(), writeTemp(t, "hit\nrest\n"))
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Empty(t, res.Matches[0].ContextBefore)
}

func TestEncodingFailFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("good line\n\xc3\x28rest\n"), 0o644))

	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("good", false, types.BoundaryNone),
	})

	_, err := p.ProcessFile(context.Background(), path)
	var encErr *types.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, path, encErr.Path)
	assert.Equal(t, int64(10), encErr.ByteOffset, "offset should point at the 0xC3 byte")
}

func TestEncodingLossy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("target\n\xc3\x28 target\n"), 0o644))

	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("target", false, types.BoundaryNone),
	}, func(c *Config) { c.Encoding = types.EncodingLossy })

	res, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Contains(t, res.Matches[1].LineText, "�")
}

func TestMissingFile(t *testing.T) {
	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("x", false, types.BoundaryNone),
	})
	_, err := p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	var ferr *types.FileError
	require.ErrorAs(t, err, &ferr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCancellation(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 5000; i++ {
		sb.WriteString("some line without hits at all\n")
	}
	path := writeTemp(t, sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newProcessor(t, []types.PatternDefinition{
		types.NewPattern("absent", false, types.BoundaryNone),
	})
	_, err := p.ProcessFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitLineAligned(t *testing.T) {
	line := strings.Repeat("abcdefg ", 16) + "\n"
	data := []byte(strings.Repeat(line, 40000)) // well past 2 MiB

	chunks := splitLineAligned(data, 4)
	require.Greater(t, len(chunks), 1)

	total := 0
	for i, c := range chunks {
		require.Less(t, c.start, c.end)
		if i > 0 {
			assert.Equal(t, chunks[i-1].end, c.start, "chunks must tile")
			assert.Equal(t, byte('\n'), data[c.start-1], "boundary must follow a newline")
		}
		total += c.end - c.start
	}
	assert.Equal(t, len(data), total)
}

func TestSplitLineAlignedSmallInputIsSingleChunk(t *testing.T) {
	chunks := splitLineAligned([]byte("one\ntwo\n"), 8)
	assert.Equal(t, []chunk{{0, 8}}, chunks)
}
