// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package scout

import (
	"context"
	"log/slog"

	"github.com/petar-djukic/goscout/internal/walker"
)

// walkDir enumerates the files of a directory target with the default
// walker filters (built-in ignores, binary skip).
func walkDir(ctx context.Context, dir string, logger *slog.Logger) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := walker.New(walker.Config{Root: dir, Logger: logger})
	if err != nil {
		return nil, err
	}
	return w.Walk()
}
