package simgraph

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with simgraph-specific context.
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

// WithPhase adds a pipeline phase field to the logger.
func (l *Logger) WithPhase(phase string) *Logger {
	return &Logger{
		Logger: l.Logger.With("phase", phase),
	}
}

// WithRun adds a run ID field to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID),
	}
}

// LogLoad logs completion of the vector load phase.
func (l *Logger) LogLoad(ctx context.Context, path string, n, dim int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vector load failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "vectors loaded",
			"path", path,
			"documents", n,
			"dimension", dim,
		)
	}
}

// LogScanProgress logs incremental scan progress.
func (l *Logger) LogScanProgress(ctx context.Context, tilesDone, tilesTotal int, edges int64) {
	l.InfoContext(ctx, "scan progress",
		"tiles_done", tilesDone,
		"tiles_total", tilesTotal,
		"edges", edges,
	)
}

// LogScan logs completion of the tile scan phase.
func (l *Logger) LogScan(ctx context.Context, tilesScored, tilesSkipped int64, edges int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "tile scan failed",
			"tiles_scored", tilesScored,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "tile scan completed",
			"tiles_scored", tilesScored,
			"tiles_skipped", tilesSkipped,
			"edges", edges,
			"elapsed", elapsed,
		)
	}
}

// LogAssemble logs completion of the matrix assembly phase.
func (l *Logger) LogAssemble(ctx context.Context, n, nnz int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "matrix assembly failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "matrix assembled",
			"documents", n,
			"nnz", nnz,
		)
	}
}

// LogArtifact logs a persisted artifact.
func (l *Logger) LogArtifact(ctx context.Context, filename string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "artifact write failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "artifact written",
			"filename", filename,
			"bytes", size,
		)
	}
}

// LogPublish logs an artifact upload.
func (l *Logger) LogPublish(ctx context.Context, key string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "artifact publish failed",
			"key", key,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "artifact published",
			"key", key,
			"bytes", size,
		)
	}
}
