// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package matcher

import (
	"sort"

	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/pkg/types"
)

// Hit is a raw occurrence tagged with the pattern that produced it.
type Hit struct {
	Start        int
	End          int
	PatternIndex int
}

// Set holds an ordered group of pattern matchers and scans a text buffer
// once for all of them.
type Set struct {
	matchers []*PatternMatcher
}

// NewSet compiles the definitions in user order. An empty definition list
// is rejected with ErrNoPatterns.
func NewSet(defs []types.PatternDefinition, m *metrics.MemoryMetrics) (*Set, error) {
	if len(defs) == 0 {
		return nil, types.ErrNoPatterns
	}
	matchers := make([]*PatternMatcher, 0, len(defs))
	for _, def := range defs {
		pm, err := New(def, m)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, pm)
	}
	return &Set{matchers: matchers}, nil
}

// Matchers returns the compiled matchers in user order.
func (s *Set) Matchers() []*PatternMatcher { return s.matchers }

// Scan returns every hit of every pattern in text, sorted by
// (start, pattern index). Hits of different patterns may overlap; hits of
// one pattern never do (each strategy advances past its matches).
func (s *Set) Scan(text string) []Hit {
	var hits []Hit
	for i, pm := range s.matchers {
		for _, sp := range pm.FindMatches(text) {
			hits = append(hits, Hit{Start: sp.Start, End: sp.End, PatternIndex: i})
		}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Start != hits[b].Start {
			return hits[a].Start < hits[b].Start
		}
		return hits[a].PatternIndex < hits[b].PatternIndex
	})
	return hits
}

// Fingerprint returns the stable fingerprint of this set's definitions.
func (s *Set) Fingerprint() string {
	defs := make([]types.PatternDefinition, len(s.matchers))
	for i, pm := range s.matchers {
		defs[i] = pm.Definition()
	}
	return Fingerprint(defs)
}
