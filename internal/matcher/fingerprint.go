// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package matcher

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/petar-djukic/goscout/pkg/types"
)

// Fingerprint computes a stable hash over an ordered list of pattern
// definitions. Caches keyed by this value may be shared only among searches
// with an identical pattern set.
func Fingerprint(defs []types.PatternDefinition) string {
	h := xxhash.New()
	var buf [8]byte
	for _, d := range defs {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(d.Text)))
		h.Write(buf[:])
		h.WriteString(d.Text)
		flags := byte(d.Boundary)<<2 | byte(d.Hyphens)<<1
		if d.IsRegex {
			flags |= 1
		}
		h.Write([]byte{flags})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
