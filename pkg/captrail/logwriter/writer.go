// Package logwriter appends capture entries to a log file with bounded
// write retries and size-based rotation.
package logwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/captrail/captrail/pkg/captrail/errs"
	"github.com/captrail/captrail/pkg/captrail/observability"
)

// archiveLayout is the timestamp suffix appended to rotated files.
const archiveLayout = "20060102150405"

// Options configure a Writer.
type Options struct {
	// Path is the log file location. Parent directories are created.
	Path string

	// MaxSize is the rotation threshold in bytes. Zero disables the
	// size check regardless of Rotate.
	MaxSize int64

	// Rotate enables size-based rotation.
	Rotate bool

	// Retry bounds each write. Zero-value means errs.DefaultRetry.
	Retry errs.RetryConfig

	// Logger receives operational messages. May be nil.
	Logger *slog.Logger

	// Metrics receives write and rotation measurements. Nil means no-op.
	Metrics observability.MetricsRecorder

	// Stats is the shared counter registry. Nil allocates a private one.
	Stats *observability.Registry

	// OnRotate is called after each successful rotation with the archive
	// path and its size. May be nil. Called with the writer's lock held,
	// so it must not call back into the writer.
	OnRotate func(archivePath string, sizeBytes int64)
}

// Writer is a durable, append-only sink for formatted capture entries.
// Safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	path     string
	maxSize  int64
	rotate   bool
	retry    errs.RetryConfig
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	stats    *observability.Registry
	onRotate func(string, int64)
	closed   bool

	// seams for tests
	writeFn func(f *os.File, p []byte) (int, error)
	clock   func() time.Time
}

// Open creates or reopens the log file in append mode. An existing file
// is continued, with its current size counted toward the rotation
// threshold.
func Open(opts Options) (*Writer, error) {
	if opts.Path == "" {
		return nil, errs.Initialization(errors.New("log path must not be empty"), "open log")
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errs.Initialization(err, "create log directory")
		}
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = errs.DefaultRetry
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	stats := opts.Stats
	if stats == nil {
		stats = &observability.Registry{}
	}

	w := &Writer{
		path:     opts.Path,
		maxSize:  opts.MaxSize,
		rotate:   opts.Rotate,
		retry:    retry,
		logger:   opts.Logger,
		metrics:  metrics,
		stats:    stats,
		onRotate: opts.OnRotate,
		writeFn:  func(f *os.File, p []byte) (int, error) { return f.Write(p) },
		clock:    time.Now,
	}
	if err := w.openFile(); err != nil {
		return nil, errs.Initialization(err, "open log file")
	}
	return w, nil
}

// openFile opens w.path in append mode and recomputes the tracked size.
func (w *Writer) openFile() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write appends p to the log file, retrying transient failures within the
// configured budget. On success it may rotate the file. Satisfies the
// aggregation buffer's sink contract.
func (w *Writer) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errs.WriteFailure(os.ErrClosed, "write to closed log")
	}

	start := w.clock()
	attempt := 0
	res := errs.WithRetry(w.retry, func() error {
		attempt++
		n, err := w.writeFn(w.file, p)
		if err != nil {
			observability.LogWriteRetry(w.logger, attempt, err)
			return err
		}
		if n < len(p) {
			short := fmt.Errorf("short write: %d of %d bytes", n, len(p))
			observability.LogWriteRetry(w.logger, attempt, short)
			return short
		}
		return nil
	})

	w.stats.RetryCount.Add(uint64(res.FailedAttempts()))
	w.metrics.RecordWrite(context.Background(), len(p), w.clock().Sub(start), res.Err)

	if res.Err != nil {
		w.stats.FailedWrites.Add(1)
		observability.LogWriteFailure(w.logger, len(p), res.Err)
		return res.Err
	}

	w.stats.TotalWrites.Add(1)
	w.stats.BytesWritten.Add(uint64(len(p)))
	w.size += int64(len(p))

	w.maybeRotateLocked()
	return nil
}

// maybeRotateLocked rotates the file when it reached the size threshold.
// Rotation is best effort: a failure leaves the writer appending to the
// current file. Caller holds w.mu.
func (w *Writer) maybeRotateLocked() {
	if !w.rotate || w.maxSize <= 0 || w.size < w.maxSize {
		return
	}
	if err := w.rotateLocked(); err != nil {
		observability.LogRotationFailure(w.logger, err)
	}
}

// Rotate archives the current file under a timestamp suffix and starts a
// fresh one. Exposed for scheduled maintenance.
func (w *Writer) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errs.RotationFailure(os.ErrClosed, "rotate closed log")
	}
	return w.rotateLocked()
}

// rotateLocked performs the close-rename-reopen sequence. If the rename
// fails the original file is reopened and writing continues against it;
// if even the reopen fails the writer stays usable only after a later
// successful reopen, so that path is retried too. Caller holds w.mu.
func (w *Writer) rotateLocked() error {
	archived := w.size

	if err := w.file.Close(); err != nil && w.logger != nil {
		// Keep going: the rename below works on the path, not the handle.
		w.logger.Warn("close before rotation failed", slog.String("error", err.Error()))
	}

	archive := w.path + "." + w.clock().Format(archiveLayout)
	if err := os.Rename(w.path, archive); err != nil {
		if reopenErr := w.openFile(); reopenErr != nil {
			return errs.RotationFailure(errors.Join(err, reopenErr), "rename and reopen")
		}
		return errs.RotationFailure(err, "rename log file")
	}

	if err := w.openFile(); err != nil {
		return errs.RotationFailure(err, "reopen after rotation")
	}

	w.stats.FilesRotated.Add(1)
	w.metrics.RecordRotation(context.Background(), archived)
	observability.LogRotation(w.logger, archive, archived)
	if w.onRotate != nil {
		w.onRotate(archive, archived)
	}
	return nil
}

// Sync flushes the file's contents to stable storage.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.file.Sync()
}

// Size returns the current file size in bytes.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Path returns the active log file path.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the log file. Further writes fail. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
