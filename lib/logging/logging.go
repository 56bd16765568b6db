// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide slog logger.
//
// When the output is a terminal the logger uses slog.TextHandler for
// human-readable lines; otherwise (systemd journal, pipes, tests) it
// uses slog.JSONHandler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParseLevel maps debug, info, warn (or warning) and error to a
// slog.Level. Matching is case-insensitive.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
}

// New returns a logger writing to output at level. Text output is
// chosen when output is a terminal.
func New(output io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(output) {
		handler = slog.NewTextHandler(output, options)
	} else {
		handler = slog.NewJSONHandler(output, options)
	}
	return slog.New(handler)
}

// NewStderr returns a stderr logger for the named level.
func NewStderr(levelName string) (*slog.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	return New(os.Stderr, level), nil
}

func isTerminal(output io.Writer) bool {
	file, ok := output.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
