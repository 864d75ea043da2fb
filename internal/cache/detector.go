// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package cache

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	gogit "github.com/go-git/go-git/v5"

	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

// Strategy names a change-detection approach.
type Strategy string

const (
	// StrategyAuto picks git when the root is inside a repository,
	// signatures otherwise.
	StrategyAuto Strategy = "auto"
	// StrategySignature compares (size, mtime) tuples, optionally content
	// hashes.
	StrategySignature Strategy = "signature"
	// StrategyGit classifies files from the repository worktree status.
	StrategyGit Strategy = "git"
)

// ParseStrategy validates a CLI/config strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategySignature, StrategyGit:
		return Strategy(s), nil
	default:
		return StrategyAuto, fmt.Errorf("unknown cache strategy %q", s)
	}
}

// Detector classifies candidate files against the previous run.
// Implementations must not fail the search: per-path errors degrade that
// path to StatusModified.
type Detector interface {
	Detect(paths []string) map[string]types.ChangeInfo
}

// NewDetector builds the detector for the strategy. Auto probes the root
// for a git repository.
func NewDetector(strategy Strategy, root string, prev map[string]types.FileSignature, logger *slog.Logger) Detector {
	log := logging.OrDefault(logger)
	switch strategy {
	case StrategyGit:
		if d, err := newGitDetector(root, log); err == nil {
			return d
		} else {
			log.Warn("git detector unavailable, using signatures", "root", root, "error", err)
		}
	case StrategyAuto:
		if d, err := newGitDetector(root, log); err == nil {
			return d
		}
	}
	return &SignatureDetector{Previous: prev}
}

// ComputeSignature stats a file and, when withHash is set, hashes its
// content for mtime-granularity-proof comparison.
func ComputeSignature(path string, withHash bool) (types.FileSignature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.FileSignature{}, err
	}
	sig := types.FileSignature{Size: info.Size(), ModTime: info.ModTime()}
	if withHash {
		f, err := os.Open(path)
		if err != nil {
			return sig, err
		}
		defer f.Close()
		h := xxhash.New()
		if _, err := io.Copy(h, f); err != nil {
			return sig, err
		}
		sig.Hash = hex.EncodeToString(h.Sum(nil))
	}
	return sig, nil
}

// SignatureDetector compares fresh signatures against the previous run's.
type SignatureDetector struct {
	Previous map[string]types.FileSignature
	WithHash bool
}

// Detect classifies each path. Unknown paths are Added; stat failures
// degrade to Modified so the file is rescanned.
func (d *SignatureDetector) Detect(paths []string) map[string]types.ChangeInfo {
	out := make(map[string]types.ChangeInfo, len(paths))
	for _, path := range paths {
		prev, known := d.Previous[path]
		if !known {
			out[path] = types.ChangeInfo{Path: path, Status: types.StatusAdded}
			continue
		}
		sig, err := ComputeSignature(path, d.WithHash && prev.Hash != "")
		switch {
		case err != nil:
			out[path] = types.ChangeInfo{Path: path, Status: types.StatusModified}
		case sig.Equal(prev):
			out[path] = types.ChangeInfo{Path: path, Status: types.StatusUnchanged}
		default:
			out[path] = types.ChangeInfo{Path: path, Status: types.StatusModified}
		}
	}
	return out
}

// gitDetector reads the worktree status once and classifies paths from it.
type gitDetector struct {
	root   string
	status gogit.Status
	log    *slog.Logger
}

func newGitDetector(root string, log *slog.Logger) (*gitDetector, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	return &gitDetector{root: root, status: status, log: log}, nil
}

// Detect maps worktree status codes onto change statuses. Files git
// considers clean are Unchanged; untracked files are Added; renames carry
// the previous path so cache entries can migrate.
func (d *gitDetector) Detect(paths []string) map[string]types.ChangeInfo {
	out := make(map[string]types.ChangeInfo, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			out[path] = types.ChangeInfo{Path: path, Status: types.StatusModified}
			continue
		}
		rel = filepath.ToSlash(rel)

		// Paths absent from the status map are clean tracked files.
		fs, dirty := d.status[rel]
		info := types.ChangeInfo{Path: path}
		switch {
		case !dirty:
			info.Status = types.StatusUnchanged
		case fs.Worktree == gogit.Untracked || fs.Staging == gogit.Added:
			info.Status = types.StatusAdded
		case fs.Worktree == gogit.Renamed || fs.Staging == gogit.Renamed:
			info.Status = types.StatusRenamed
			if fs.Extra != "" {
				info.PreviousPath = filepath.Join(d.root, filepath.FromSlash(fs.Extra))
			} else {
				// No origin recorded; rescanning is always correct.
				info.Status = types.StatusAdded
			}
		case fs.Worktree == gogit.Deleted || fs.Staging == gogit.Deleted:
			info.Status = types.StatusDeleted
		case fs.Worktree == gogit.Unmodified && fs.Staging == gogit.Unmodified:
			info.Status = types.StatusUnchanged
		default:
			info.Status = types.StatusModified
		}
		out[path] = info
	}
	return out
}
