// Package logging configures the process-wide slog logger and adapts it to
// the progress observer used by sync and grading runs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds a text or JSON logger tagged with the service name and
// installs it as the default logger.
func Setup(level, format, service string) *slog.Logger {
	return setup(os.Stdout, level, format, service)
}

func setup(w io.Writer, level, format, service string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
