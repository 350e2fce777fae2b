package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LoggerOptions describe how to configure a logger instance.
type LoggerOptions struct {
	Level  string // debug, info, warn, error (default info)
	Format string // json (default) or text
	Output io.Writer
}

// NewLogger creates a structured logger backed by slog.
func NewLogger(opts LoggerOptions) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", opts.Level)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		handler = slog.NewJSONHandler(out, &handlerOpts)
	case "text", "console":
		handler = slog.NewTextHandler(out, &handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	return slog.New(handler), nil
}

// LogCaptureStart logs the start of a capture session.
func LogCaptureStart(logger *slog.Logger, sessionID, logPath string) {
	if logger == nil {
		return
	}
	logger.Info("capture started",
		slog.String("session_id", sessionID),
		slog.String("log_path", logPath),
	)
}

// LogCaptureStop logs the end of a capture session with its final counters.
func LogCaptureStop(logger *slog.Logger, sessionID string, snap Snapshot) {
	if logger == nil {
		return
	}
	logger.Info("capture stopped",
		slog.String("session_id", sessionID),
		slog.Uint64("total_events", snap.TotalEvents),
		slog.Uint64("dropped_events", snap.DroppedEvents),
		slog.Uint64("bytes_written", snap.BytesWritten),
		slog.Uint64("files_rotated", snap.FilesRotated),
	)
}

// LogQueueOverflow logs a rejected enqueue (debug level: it is counted, and
// under sustained overload one line per drop would swamp the log).
func LogQueueOverflow(logger *slog.Logger, kind string) {
	if logger == nil {
		return
	}
	logger.Debug("event queue full, dropping event",
		slog.String("kind", kind),
	)
}

// LogWriteRetry logs a failed write attempt that will be retried.
func LogWriteRetry(logger *slog.Logger, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("log write failed, retrying",
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// LogWriteFailure logs a write that exhausted its retry budget.
func LogWriteFailure(logger *slog.Logger, size int, err error) {
	if logger == nil {
		return
	}
	logger.Error("log write failed after retries",
		slog.Int("size_bytes", size),
		slog.String("error", err.Error()),
	)
}

// LogRotation logs a completed log rotation.
func LogRotation(logger *slog.Logger, archivePath string, bytes int64) {
	if logger == nil {
		return
	}
	logger.Info("log rotated",
		slog.String("archive", archivePath),
		slog.Int64("bytes", bytes),
	)
}

// LogRotationFailure logs a best-effort rotation that did not complete.
func LogRotationFailure(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("log rotation failed, continuing against current file",
		slog.String("error", err.Error()),
	)
}

// LogBufferOverflow logs an aggregation buffer entry that was dropped.
func LogBufferOverflow(logger *slog.Logger, entryBytes int) {
	if logger == nil {
		return
	}
	logger.Warn("aggregation buffer full, entry dropped",
		slog.Int("entry_bytes", entryBytes),
	)
}

// TimedOperation measures the duration of an operation. The returned
// function reports the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
