// Package logger is the slog front-end shared by the link drivers, the
// endpoint façades, and the refresh scheduler. Both endpoint processes
// log to a console stream only. The stream link and the BLE central stamp
// every record with the link kind and a per-connection session id via
// ForSession so interleaved reader/writer output stays attributable; the
// BLE peripheral's records carry no session id.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger embeds *slog.Logger; Info/Warn/Error/Debug are available
// directly.
type Logger struct {
	*slog.Logger
}

// Config selects level, format, and console stream.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text", "json"
	Output string // "stdout" (default), "stderr"
}

// New creates a Logger from config.
func New(config Config) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(config.Output, "stderr") {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// With returns a Logger that includes args in every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ForSession returns a Logger stamped with the link kind ("stream",
// "ble") and a per-connection session id. Link drivers call this once
// per established connection.
func (l *Logger) ForSession(link, session string) *Logger {
	return l.With("link", link, "session", session)
}

var globalLogger *Logger

// Global returns the process-wide logger, creating an info-level text
// logger on first use if SetGlobal was never called.
func Global() *Logger {
	if globalLogger == nil {
		globalLogger = New(Config{Level: "info", Format: "text"})
	}
	return globalLogger
}

// SetGlobal installs l as the process-wide logger.
func SetGlobal(l *Logger) {
	globalLogger = l
}
