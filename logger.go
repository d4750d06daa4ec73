package arbordb

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with arbordb-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// LogPut logs a dataset write.
func (l *Logger) LogPut(ctx context.Context, name string, written, deleted int, generation uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "put completed",
			"dataset", name,
			"batches_written", written,
			"batches_deleted", deleted,
			"generation", generation,
		)
	}
}

// LogGet logs a dataset read.
func (l *Logger) LogGet(ctx context.Context, name string, batches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "get completed",
			"dataset", name,
			"batches", batches,
		)
	}
}

// LogDelete logs a dataset delete.
func (l *Logger) LogDelete(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"dataset", name,
		)
	}
}

// LogQuery logs a query evaluation.
func (l *Logger) LogQuery(ctx context.Context, name string, vectorized bool, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"dataset", name,
			"vectorized", vectorized,
			"matches", matches,
		)
	}
}

// LogWarm logs a cache warm-up pass.
func (l *Logger) LogWarm(ctx context.Context, name string, loaded, skipped int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "warm failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "warm completed",
			"dataset", name,
			"loaded", loaded,
			"skipped", skipped,
			"bytes", bytes,
		)
	}
}

// LogBackup logs a backup operation.
func (l *Logger) LogBackup(ctx context.Context, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup completed",
			"bytes", bytes,
		)
	}
}
