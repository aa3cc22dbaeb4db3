package ledgercache

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ledgercache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithEntity adds an entity field to the logger.
func (l *Logger) WithEntity(entity string) *Logger {
	return &Logger{
		Logger: l.Logger.With("entity", entity),
	}
}

// LogLoad logs a snapshot load.
func (l *Logger) LogLoad(kind string, rows, skipped int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("load failed",
			"kind", kind,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.Info("load completed",
			"kind", kind,
			"rows", rows,
			"skipped", skipped,
			"elapsed", elapsed,
		)
	}
}

// LogAppend logs a write-through append.
func (l *Logger) LogAppend(kind string, position int, err error) {
	if err != nil {
		l.Error("write-through append failed",
			"kind", kind,
			"error", err,
		)
	} else {
		l.Debug("write-through append completed",
			"kind", kind,
			"position", position,
		)
	}
}

// LogInvalidate logs an invalidation. entity is empty for whole-cache drops.
func (l *Logger) LogInvalidate(kind, entity string) {
	if entity == "" {
		l.Debug("cache invalidated", "kind", kind)
	} else {
		l.Debug("entity invalidated", "kind", kind, "entity", entity)
	}
}
