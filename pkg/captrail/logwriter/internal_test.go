package logwriter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captrail/captrail/pkg/captrail/errs"
	"github.com/captrail/captrail/pkg/captrail/observability"
)

// Tests for the retry and rotation failure paths, which need the
// unexported write and clock seams.

func TestWriteRetriesTransientFailures(t *testing.T) {
	stats := &observability.Registry{}
	w, err := Open(Options{
		Path:  filepath.Join(t.TempDir(), "capture.log"),
		Retry: errs.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond},
		Stats: stats,
	})
	require.NoError(t, err)
	defer w.Close()

	realWrite := w.writeFn
	failures := 2
	w.writeFn = func(f *os.File, p []byte) (int, error) {
		if failures > 0 {
			failures--
			return 0, errors.New("transient io error")
		}
		return realWrite(f, p)
	}

	require.NoError(t, w.Write([]byte("persisted\n")))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(2), snap.RetryCount, "two failed attempts before success")
	assert.Equal(t, uint64(1), snap.TotalWrites)
	assert.Equal(t, uint64(0), snap.FailedWrites)
}

func TestWriteExhaustsRetryBudget(t *testing.T) {
	stats := &observability.Registry{}
	w, err := Open(Options{
		Path:  filepath.Join(t.TempDir(), "capture.log"),
		Retry: errs.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond},
		Stats: stats,
	})
	require.NoError(t, err)
	defer w.Close()

	w.writeFn = func(*os.File, []byte) (int, error) {
		return 0, errors.New("disk on fire")
	}

	writeErr := w.Write([]byte("doomed\n"))
	require.Error(t, writeErr)
	assert.Equal(t, errs.CategoryWriteFailure, errs.Categorize(writeErr))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(3), snap.RetryCount)
	assert.Equal(t, uint64(1), snap.FailedWrites)
	assert.Equal(t, uint64(0), snap.TotalWrites)
	assert.Equal(t, int64(0), w.Size(), "failed write does not advance size")
}

func TestShortWriteIsRetried(t *testing.T) {
	w, err := Open(Options{
		Path:  filepath.Join(t.TempDir(), "capture.log"),
		Retry: errs.RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	defer w.Close()

	realWrite := w.writeFn
	first := true
	w.writeFn = func(f *os.File, p []byte) (int, error) {
		if first {
			first = false
			return len(p) / 2, nil
		}
		return realWrite(f, p)
	}

	require.NoError(t, w.Write([]byte("whole entry\n")))
}

func TestRotationRenameFailureContinuesOnOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.log")
	stats := &observability.Registry{}
	w, err := Open(Options{
		Path:    path,
		MaxSize: 10,
		Rotate:  true,
		Stats:   stats,
	})
	require.NoError(t, err)
	defer w.Close()

	// Pin the clock so the archive path is predictable, then occupy it
	// with a non-empty directory so the rename must fail.
	fixed := time.Date(2024, 3, 17, 9, 30, 15, 0, time.Local)
	w.clock = func() time.Time { return fixed }
	blocker := path + "." + fixed.Format("20060102150405")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "occupied"), 0o700))

	require.NoError(t, w.Write([]byte("crosses the threshold\n")))

	// Best effort: the write succeeded, rotation did not.
	assert.Equal(t, uint64(0), stats.Snapshot().FilesRotated)

	// The writer keeps appending to the original file.
	require.NoError(t, w.Write([]byte("still appending\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still appending")
	assert.Contains(t, string(data), "crosses the threshold")
}
