// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package logging provides structured logging for goscout components.
//
// Built on log/slog. The default logger writes text to stderr following
// Unix CLI conventions; the level is taken from the GOSCOUT_LOG environment
// variable ("debug", "info", "warn", "error") unless overridden by Config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable consulted for the default log level.
const EnvVar = "GOSCOUT_LOG"

// Config configures logger construction. The zero value writes Info+
// text lines to stderr.
type Config struct {
	Level  slog.Level
	JSON   bool
	Output io.Writer // defaults to os.Stderr
}

// New builds a logger from the config.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Default returns a stderr text logger at the level named by GOSCOUT_LOG,
// or Info when the variable is unset or unrecognized.
func Default() *slog.Logger {
	return New(Config{Level: ParseLevel(os.Getenv(EnvVar))})
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used in tests; a nil
// logger falls back to Default, not Discard (see OrDefault).
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault returns l, or the package default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return Default()
}
