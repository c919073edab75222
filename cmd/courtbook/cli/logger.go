// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// NewCommandLogger returns the logger commands use. On a terminal it
// writes slog text; when stderr is piped (cron, systemd, CI) it writes
// JSON. COURTBOOK_LOG_LEVEL selects the level (debug, info, warn,
// error); the default is info.
func NewCommandLogger() *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), os.Getenv("COURTBOOK_LOG_LEVEL"))
}

func newLogger(w io.Writer, terminal bool, level string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLevel(level)}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}
