// Package log configures structured logging for the application.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/librarianhq/librarian/internal/config"
)

// New creates a slog.Logger based on configuration.
func New(cfg config.AppConfig) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg.LogFormat(), cfg.LogLevel())
}

// NewWithWriter creates a slog.Logger that writes to the specified writer.
func NewWithWriter(w io.Writer, format config.LogFormat, level string) *slog.Logger {
	lvl := parseLevel(level)

	var handler slog.Handler
	switch format {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		handler = NewTerminalHandler(w, lvl)
	}

	return slog.New(handler)
}

// Configure sets up logging based on configuration and installs the
// result as the process-wide default.
func Configure(cfg config.AppConfig) *slog.Logger {
	l := New(cfg)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
