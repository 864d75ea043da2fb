// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package matcher

import (
	"fmt"
	"regexp"

	"github.com/petar-djukic/goscout/pkg/types"
)

// ValidateTemplate checks every $k back-reference in a replacement template
// against the compiled regex's group count. Group 0 is always valid; $$ is
// the literal-dollar escape. Validation is static; references are never
// resolved lazily.
func ValidateTemplate(re *regexp.Regexp, template string) error {
	groups := re.NumSubexp()
	for i := 0; i < len(template); {
		if template[i] != '$' {
			i++
			continue
		}
		if i+1 < len(template) && template[i+1] == '$' {
			i += 2
			continue
		}
		num, width := parseGroupRef(template[i+1:])
		if width == 0 {
			i++
			continue
		}
		if num > groups {
			return &types.InvalidPatternError{
				Pattern: re.String(),
				Reason:  fmt.Sprintf("replacement references capture group $%d, but the pattern has %d", num, groups),
			}
		}
		i += 1 + width
	}
	return nil
}

// parseGroupRef reads a numeric group reference at the start of s, in
// either the bare "12" or the braced "{12}" form. Returns the group number
// and the number of bytes consumed, or width 0 when s does not start a
// numeric reference.
func parseGroupRef(s string) (num, width int) {
	braced := false
	i := 0
	if i < len(s) && s[i] == '{' {
		braced = true
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		num = num*10 + int(s[i]-'0')
		i++
	}
	if i == start {
		return 0, 0
	}
	if braced {
		if i >= len(s) || s[i] != '}' {
			return 0, 0
		}
		i++
	}
	return num, i
}

// ExpandTemplate renders the template for one regex match of text.
// matchIndex is the submatch index slice from FindAllStringSubmatchIndex.
func ExpandTemplate(re *regexp.Regexp, template, text string, matchIndex []int) string {
	return string(re.ExpandString(nil, template, text, matchIndex))
}
