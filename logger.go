package hnswgraph

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/hnswgraph/hnsw"
)

// Logger wraps slog.Logger with hnswgraph-specific context.
// This provides structured logging with consistent field names.
//
// Logger is also an hnsw.InfoStream: graph construction diagnostics are
// logged at debug level with a "component" attribute.
type Logger struct {
	*slog.Logger
}

var _ hnsw.InfoStream = (*Logger)(nil)

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

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// Enabled reports whether diagnostics are logged, which is the case when
// the debug level is enabled.
func (l *Logger) Enabled(component string) bool {
	return l.Logger.Enabled(context.Background(), slog.LevelDebug)
}

// Message logs a construction diagnostic at debug level.
func (l *Logger) Message(component, msg string) {
	l.Debug(msg, "component", component)
}

// LogBuild logs a graph build.
func (l *Logger) LogBuild(ctx context.Context, nodes, workers int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"nodes", nodes,
			"workers", workers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"nodes", nodes,
			"workers", workers,
			"elapsed", elapsed,
		)
	}
}

// LogMerge logs a merge that warm started from segment graphs.
func (l *Logger) LogMerge(ctx context.Context, segments, total int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"segments", segments,
			"total", total,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "merge completed",
			"segments", segments,
			"total", total,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, exact bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
			"exact", exact,
		)
	}
}
