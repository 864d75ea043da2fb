// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package matcher compiles pattern definitions into matching strategies and
// finds pattern occurrences in text. Compiled strategies are cached in a
// process-wide concurrent map keyed by the full pattern definition.
package matcher

import (
	"regexp"
	"strings"
	"sync"

	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/pkg/types"
)

// Span is a half-open byte range [Start, End) within the scanned text.
type Span struct {
	Start int
	End   int
}

// strategy finds all ordered, non-overlapping occurrences in text.
type strategy interface {
	find(text string) []Span
}

// literalStrategy matches via substring scan, advancing past each
// occurrence. Boundary filtering uses the shared word-boundary predicate.
type literalStrategy struct {
	pattern  string
	boundary types.BoundaryMode
	hyphens  types.HyphenMode
}

func (s *literalStrategy) find(text string) []Span {
	var spans []Span
	for from := 0; ; {
		i := strings.Index(text[from:], s.pattern)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(s.pattern)
		if s.boundary == types.BoundaryNone || isWholeWord(text, start, end, s.hyphens) {
			spans = append(spans, Span{Start: start, End: end})
		}
		from = end
	}
	return spans
}

// regexStrategy matches via a compiled regexp. When postFilter is set, each
// raw match is additionally checked against the word-boundary predicate;
// this is how whole-word semantics are enforced for patterns that carry no
// explicit \b anchors, keeping literal and regex results identical.
type regexStrategy struct {
	re         *regexp.Regexp
	postFilter bool
	hyphens    types.HyphenMode
}

func (s *regexStrategy) find(text string) []Span {
	var spans []Span
	for _, m := range s.re.FindAllStringIndex(text, -1) {
		if s.postFilter && !isWholeWord(text, m[0], m[1], s.hyphens) {
			continue
		}
		spans = append(spans, Span{Start: m[0], End: m[1]})
	}
	return spans
}

type cacheKey struct {
	text     string
	isRegex  bool
	boundary types.BoundaryMode
	hyphens  types.HyphenMode
}

// strategyCache caches compiled strategies for the lifetime of the process.
// Insertion is idempotent under race; a loser discards its compiled value.
var strategyCache sync.Map

// ClearCache empties the global strategy cache. Tests only.
func ClearCache() {
	strategyCache.Range(func(k, _ any) bool {
		strategyCache.Delete(k)
		return true
	})
}

// PatternMatcher matches a single compiled pattern.
type PatternMatcher struct {
	def   types.PatternDefinition
	strat strategy
}

// New compiles a PatternDefinition into a PatternMatcher, consulting the
// global strategy cache. Repeated construction of the same definition is
// O(1).
func New(def types.PatternDefinition, m *metrics.MemoryMetrics) (*PatternMatcher, error) {
	if strings.TrimSpace(def.Text) == "" {
		return nil, &types.InvalidPatternError{Reason: "empty pattern"}
	}

	key := cacheKey{def.Text, def.IsRegex, def.Boundary, def.Hyphens}
	if v, ok := strategyCache.Load(key); ok {
		if m != nil {
			m.RecordCacheOperation(int64(len(def.Text)), true)
		}
		return &PatternMatcher{def: def, strat: v.(strategy)}, nil
	}

	strat, err := compile(def)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.RecordCacheOperation(int64(len(def.Text)), false)
	}
	actual, _ := strategyCache.LoadOrStore(key, strat)
	return &PatternMatcher{def: def, strat: actual.(strategy)}, nil
}

// compile classifies the definition and builds its strategy. A pattern is
// literal iff it is not flagged as regex and contains no regex
// metacharacters; everything else compiles to a regexp.
func compile(def types.PatternDefinition) (strategy, error) {
	if !def.IsRegex && !containsRegexMeta(def.Text) {
		return &literalStrategy{
			pattern:  def.Text,
			boundary: def.Boundary,
			hyphens:  def.Hyphens,
		}, nil
	}

	src := def.Text
	if !def.IsRegex {
		src = regexp.QuoteMeta(def.Text)
	}

	// Whole-word semantics: a pattern that already carries \b anchors is
	// compiled verbatim with no extra filtering. Otherwise the boundary is
	// enforced by post-filtering with the Unicode predicate, which stands
	// in for the \b wrap (RE2's \b is ASCII-only and would diverge from
	// the literal strategy).
	postFilter := false
	if def.Boundary == types.BoundaryWholeWords {
		if !def.IsRegex || !containsBoundaryAnchors(def.Text) {
			postFilter = true
		}
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &types.InvalidPatternError{Pattern: def.Text, Reason: err.Error()}
	}
	return &regexStrategy{re: re, postFilter: postFilter, hyphens: def.Hyphens}, nil
}

// Regexp exposes the compiled regexp of a regex-classified matcher, or nil
// for literal strategies. The replacement planner uses it for capture
// expansion.
func (pm *PatternMatcher) Regexp() *regexp.Regexp {
	if rs, ok := pm.strat.(*regexStrategy); ok {
		return rs.re
	}
	return nil
}

// Definition returns the pattern definition this matcher was built from.
func (pm *PatternMatcher) Definition() types.PatternDefinition { return pm.def }

// FindMatches returns all occurrences in text as byte spans, ordered by
// start and non-overlapping by construction.
func (pm *PatternMatcher) FindMatches(text string) []Span {
	return pm.strat.find(text)
}

// FindSubmatchIndexes returns the submatch index slices of every match of
// a regex-classified matcher, filtered by the same boundary predicate as
// FindMatches. Returns nil for literal strategies.
func (pm *PatternMatcher) FindSubmatchIndexes(text string) [][]int {
	rs, ok := pm.strat.(*regexStrategy)
	if !ok {
		return nil
	}
	var out [][]int
	for _, m := range rs.re.FindAllStringSubmatchIndex(text, -1) {
		if rs.postFilter && !isWholeWord(text, m[0], m[1], rs.hyphens) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func containsRegexMeta(s string) bool {
	return strings.ContainsAny(s, `\.+*?()|[]{}^$`)
}

func containsBoundaryAnchors(s string) bool {
	return strings.Contains(s, `\b`) || strings.Contains(s, `\B`)
}
