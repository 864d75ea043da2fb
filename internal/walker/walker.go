// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package walker enumerates candidate files under a root path, honoring
// gitignore-style ignore patterns, extension filters, and a binary-content
// heuristic.
package walker

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

// builtinIgnores are always applied, before user patterns.
var builtinIgnores = []string{".git/"}

// Config controls one walk.
type Config struct {
	Root           string
	IgnorePatterns []string // gitignore-style; no slash matches basenames
	Extensions     []string // case-insensitive, without leading dot; empty = all
	MaxDepth       int      // 0 = unlimited, measured from Root
	FollowSymlinks bool     // off by default
	Logger         *slog.Logger
}

// Walker enumerates files. Construct with New.
type Walker struct {
	cfg        Config
	ign        *ignore.GitIgnore
	extensions map[string]struct{}
	log        *slog.Logger
}

// New compiles the ignore patterns and normalizes the extension filter.
func New(cfg Config) (*Walker, error) {
	lines := append(append([]string{}, builtinIgnores...), cfg.IgnorePatterns...)
	ign := ignore.CompileIgnoreLines(lines...)

	var exts map[string]struct{}
	if len(cfg.Extensions) > 0 {
		exts = make(map[string]struct{}, len(cfg.Extensions))
		for _, e := range cfg.Extensions {
			exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
		}
	}

	return &Walker{
		cfg:        cfg,
		ign:        ign,
		extensions: exts,
		log:        logging.OrDefault(cfg.Logger),
	}, nil
}

// Walk returns the paths of all candidate files in deterministic lexical
// order. Enumeration errors on single entries are logged and skipped;
// binary files are filtered out.
func (w *Walker) Walk() ([]string, error) {
	root := normalizePath(w.cfg.Root)
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skipping entry", "error", (&types.WalkError{Path: path, Err: err}).Error())
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if w.cfg.MaxDepth > 0 && strings.Count(rel, "/")+1 > w.cfg.MaxDepth {
				return filepath.SkipDir
			}
			// Directories are matched with a trailing slash so directory
			// patterns like ".git/" apply.
			if w.ign.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !w.cfg.FollowSymlinks {
			return nil
		}
		if w.cfg.MaxDepth > 0 && strings.Count(rel, "/")+1 > w.cfg.MaxDepth {
			return nil
		}
		if w.ign.MatchesPath(rel) {
			return nil
		}
		if !w.hasValidExtension(path) {
			return nil
		}

		binary, berr := IsBinary(path)
		if berr != nil {
			w.log.Warn("skipping unreadable file", "error", (&types.WalkError{Path: path, Err: berr}).Error())
			return nil
		}
		if binary {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, &types.WalkError{Path: root, Err: err}
	}
	return paths, nil
}

func (w *Walker) hasValidExtension(path string) bool {
	if w.extensions == nil {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	_, ok := w.extensions[ext]
	return ok
}

// normalizePath strips extended-length path prefixes so equal logical paths
// compare equal across platforms.
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, `\\?\`)
	return filepath.Clean(p)
}

// binarySampleSize bounds how much of a file the binary heuristic reads.
const binarySampleSize = 1024

// IsBinary samples the first bytes of the file: a NUL byte, or more than 3%
// of bytes that are neither ASCII nor valid UTF-8 sequence starts, marks
// the file binary.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySampleSize)
	n, err := f.Read(buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return false, err
		}
		return false, nil
	}
	buf = buf[:n]

	suspect := 0
	for i := 0; i < len(buf); {
		if buf[i] == 0 {
			return true, nil
		}
		if buf[i] < 0x80 {
			i++
			continue
		}
		if !utf8.FullRune(buf[i:]) && len(buf)-i < utf8.UTFMax {
			// Incomplete sequence truncated by the sample boundary.
			break
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			suspect++
		}
		i += size
	}
	return suspect*100 > len(buf)*3, nil
}
