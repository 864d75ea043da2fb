// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package matcher

import (
	"unicode"
	"unicode/utf8"

	"github.com/petar-djukic/goscout/pkg/types"
)

// isWordChar reports whether r continues a word under the given hyphen
// policy. Letters of any script, marks, and decimal digits are word
// characters; underscore always is; ASCII hyphen and the Unicode hyphens
// U+2010..U+2015 are word characters only in joining mode.
func isWordChar(r rune, hyphens types.HyphenMode) bool {
	if r == '_' {
		return true
	}
	if r == '-' || (r >= '‐' && r <= '―') {
		return hyphens == types.HyphenJoining
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// isBoundary reports whether byte position p in text is a word boundary:
// the characters immediately before and after p differ in wordness.
// Start-of-text and end-of-text count as non-word.
func isBoundary(text string, p int, hyphens types.HyphenMode) bool {
	before := false
	if p > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:p])
		before = isWordChar(r, hyphens)
	}
	after := false
	if p < len(text) {
		r, _ := utf8.DecodeRuneInString(text[p:])
		after = isWordChar(r, hyphens)
	}
	return before != after
}

// isWholeWord reports whether the candidate range [start, end) sits at word
// boundaries on both sides. Applied identically to literal matches and to
// the post-filtering of regex matches, so both strategies share one
// boundary semantics.
func isWholeWord(text string, start, end int, hyphens types.HyphenMode) bool {
	return isBoundary(text, start, hyphens) && isBoundary(text, end, hyphens)
}
