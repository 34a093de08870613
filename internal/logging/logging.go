// Package logging constructs a *slog.Logger, the same handler the
// teacher threads through plugin.Context.Logger, switched between a
// human-readable text handler and JSON by a format argument. It does
// not install the logger as slog's default.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New builds a logger writing to w (os.Stderr when nil). format is
// "json" for structured output, anything else falls back to text.
func New(format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// levelFromEnv reads HANDOFF_LOG_LEVEL ("debug", "warn", "error"),
// defaulting to info.
func levelFromEnv() slog.Level {
	switch os.Getenv("HANDOFF_LOG_LEVEL") {
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
