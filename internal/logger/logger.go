// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger builds the slog logger used throughout energymon
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

var level = new(slog.LevelVar)

// New returns a logger writing to w in the given format ("text" or "json")
// at the given level. The level is shared by every logger returned by New
// and can be changed later with SetLevel.
func New(lvl, format string, w io.Writer) (*slog.Logger, error) {
	level.Set(parseLogLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: shortenSource,
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %q", format)
	}
}

// LogLevel returns the current level of loggers created by New
func LogLevel() slog.Level {
	return level.Level()
}

// SetLevel changes the level of every logger created by New
func SetLevel(lvl string) {
	level.Set(parseLogLevel(lvl))
}

// shortenSource keeps the package directory and file name of the source
// attribute, e.g. energymon/monitor.go:42
func shortenSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	src, ok := a.Value.Any().(*slog.Source)
	if !ok || src == nil {
		return a
	}

	file := strings.ReplaceAll(src.File, "\\", "/")
	dir, name := path.Split(file)
	src.File = path.Join(path.Base(dir), name)
	return a
}

func parseLogLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
