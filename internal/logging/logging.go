// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/Tushar13233u/my-new-chat-app/internal/config"
)

// New returns a text logger in development and a JSON logger otherwise.
func New(w io.Writer, mode config.LoggerMode) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(mode.Level), AddSource: mode.Development}
	if mode.Development {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Level parses debug/info/warn/error; anything else is info.
func Level(s string) slog.Level {
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
