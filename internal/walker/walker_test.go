// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/goscout/pkg/logging"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestWalkBasics(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello\n")
	writeFile(t, root, "sub/b.txt", "world\n")
	writeFile(t, root, ".git/config", "noise\n")

	w, err := New(Config{Root: root, Logger: logging.Discard()})
	require.NoError(t, err)
	paths, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, relPaths(t, root, paths))
}

func TestIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.rs", "fn main() {}\n")
	writeFile(t, root, "src/deep/invalid.rs", "x\n")
	writeFile(t, root, "invalid.rs", "x\n")
	writeFile(t, root, "src/lib.rs", "pub fn lib() {}\n")
	writeFile(t, root, "other/util.rs", "x\n")

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "basename pattern matches at any depth",
			patterns: []string{"invalid.rs"},
			want:     []string{"other/util.rs", "src/lib.rs", "src/main.rs"},
		},
		{
			name:     "slash pattern is anchored and star does not cross separators",
			patterns: []string{"src/*.rs"},
			want:     []string{"invalid.rs", "other/util.rs", "src/deep/invalid.rs"},
		},
		{
			name:     "directory pattern skips whole subtree",
			patterns: []string{"src/"},
			want:     []string{"invalid.rs", "other/util.rs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(Config{Root: root, IgnorePatterns: tt.patterns, Logger: logging.Discard()})
			require.NoError(t, err)
			paths, err := w.Walk()
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(t, root, paths))
		})
	}
}

func TestExtensionFilterIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.RS", "x\n")
	writeFile(t, root, "b.rs", "x\n")
	writeFile(t, root, "c.go", "x\n")
	writeFile(t, root, "noext", "x\n")

	w, err := New(Config{Root: root, Extensions: []string{"rs"}, Logger: logging.Discard()})
	require.NoError(t, err)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.RS", "b.rs"}, relPaths(t, root, paths))
}

func TestBinaryFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "text.txt", "plain text\n")
	binPath := filepath.Join(root, "blob.bin")
	require.NoError(t, os.WriteFile(binPath, []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01, 0x02}, 0o644))

	w, err := New(Config{Root: root, Logger: logging.Discard()})
	require.NoError(t, err)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"text.txt"}, relPaths(t, root, paths))
}

func TestMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.txt", "x\n")
	writeFile(t, root, "one/mid.txt", "x\n")
	writeFile(t, root, "one/two/deep.txt", "x\n")

	w, err := New(Config{Root: root, MaxDepth: 2, Logger: logging.Discard()})
	require.NoError(t, err)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"one/mid.txt", "top.txt"}, relPaths(t, root, paths))
}

func TestSymlinksAreNotFollowedByDefault(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "real.txt", "content\n")
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skip("symlinks not supported on this platform")
	}

	w, err := New(Config{Root: root, Logger: logging.Discard()})
	require.NoError(t, err)
	paths, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, relPaths(t, root, paths))
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"plain ascii", []byte("hello world\n"), false},
		{"valid utf-8", []byte("héllo wörld ünïcode\n"), false},
		{"nul byte", []byte("abc\x00def"), true},
		{"mostly invalid bytes", []byte{0xff, 0xfe, 0xff, 0xfe, 'a', 'b'}, true},
		{"empty file", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "probe")
			require.NoError(t, os.WriteFile(path, tt.content, 0o644))
			got, err := IsBinary(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
