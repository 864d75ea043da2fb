// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package replace plans and applies in-place pattern replacements with
// atomic commit, backups, and reversible undo.
package replace

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/petar-djukic/goscout/internal/matcher"
	"github.com/petar-djukic/goscout/pkg/types"
)

// ReplacementPattern pairs a pattern with its replacement template. For
// literal patterns the template is inserted verbatim; for regex patterns it
// may reference capture groups as $1, ${2}, and so on.
type ReplacementPattern struct {
	Definition types.PatternDefinition
	Template   string
}

// compiledPattern carries the matcher and the validated template.
type compiledPattern struct {
	pm       *matcher.PatternMatcher
	re       *regexp.Regexp // nil for literal strategies
	isRegex  bool           // template expansion applies only to user regexes
	template string
}

// Planner builds per-file ordered, non-overlapping edit plans. It never
// touches the filesystem beyond reading the target files.
type Planner struct {
	patterns []compiledPattern
}

// NewPlanner compiles the patterns and statically validates every capture
// reference in the templates.
func NewPlanner(patterns []ReplacementPattern) (*Planner, error) {
	if len(patterns) == 0 {
		return nil, types.ErrNoPatterns
	}
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, rp := range patterns {
		if strings.TrimSpace(rp.Definition.Text) == "" {
			return nil, &types.InvalidPatternError{Reason: "empty pattern"}
		}
		pm, err := matcher.New(rp.Definition, nil)
		if err != nil {
			return nil, err
		}
		re := pm.Regexp()
		if re != nil && rp.Definition.IsRegex {
			if err := matcher.ValidateTemplate(re, rp.Template); err != nil {
				return nil, err
			}
		}
		compiled = append(compiled, compiledPattern{
			pm:       pm,
			re:       re,
			isRegex:  rp.Definition.IsRegex,
			template: rp.Template,
		})
	}
	return &Planner{patterns: compiled}, nil
}

// PlanFile scans one file and returns its replacement plan, or nil when no
// pattern matches. Overlapping edits reject the plan with a ConflictError.
func (p *Planner) PlanFile(path string) (*types.FileReplacementPlan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &types.FileError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.FileError{Path: path, Err: err}
	}
	content := string(data)

	var tasks []types.ReplacementTask
	for i, cp := range p.patterns {
		if cp.re != nil && cp.isRegex {
			for _, m := range cp.pm.FindSubmatchIndexes(content) {
				tasks = append(tasks, types.ReplacementTask{
					Path:         path,
					Start:        m[0],
					End:          m[1],
					Replacement:  matcher.ExpandTemplate(cp.re, cp.template, content, m),
					PatternIndex: i,
				})
			}
			continue
		}
		for _, sp := range cp.pm.FindMatches(content) {
			tasks = append(tasks, types.ReplacementTask{
				Path:         path,
				Start:        sp.Start,
				End:          sp.End,
				Replacement:  cp.template,
				PatternIndex: i,
			})
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	sort.Slice(tasks, func(a, b int) bool {
		if tasks[a].Start != tasks[b].Start {
			return tasks[a].Start < tasks[b].Start
		}
		return tasks[a].PatternIndex < tasks[b].PatternIndex
	})

	for i, task := range tasks {
		if task.Start >= task.End || task.End > len(content) {
			return nil, &types.ReplaceError{Path: path, Err: errBadRange}
		}
		if i > 0 && tasks[i-1].End > task.Start {
			return nil, &types.ConflictError{Path: path, Line: countLines(content, task.Start)}
		}
	}

	return &types.FileReplacementPlan{
		Path:     path,
		Tasks:    tasks,
		FileSize: info.Size(),
		Mode:     info.Mode(),
		ModTime:  info.ModTime(),
	}, nil
}

// PlanFiles plans every target and keeps only files with matches. The
// first conflict rejects the whole operation.
func (p *Planner) PlanFiles(paths []string) ([]*types.FileReplacementPlan, error) {
	var plans []*types.FileReplacementPlan
	for _, path := range paths {
		plan, err := p.PlanFile(path)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// countLines returns the number of newlines before offset, plus 1.
func countLines(s string, offset int) int {
	return strings.Count(s[:offset], "\n") + 1
}
