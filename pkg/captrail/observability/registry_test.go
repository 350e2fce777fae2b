package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRegistrySnapshot(t *testing.T) {
	var r Registry
	r.TotalEvents.Add(5)
	r.DroppedEvents.Add(2)
	r.BytesWritten.Add(1024)
	r.FilesRotated.Add(1)

	snap := r.Snapshot()
	if snap.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", snap.TotalEvents)
	}
	if snap.DroppedEvents != 2 {
		t.Errorf("DroppedEvents = %d, want 2", snap.DroppedEvents)
	}
	if snap.BytesWritten != 1024 {
		t.Errorf("BytesWritten = %d, want 1024", snap.BytesWritten)
	}
	if snap.FilesRotated != 1 {
		t.Errorf("FilesRotated = %d, want 1", snap.FilesRotated)
	}
}

func TestRegistryReset(t *testing.T) {
	var r Registry
	r.TotalEvents.Add(10)
	r.QueueOverflows.Add(3)
	r.RetryCount.Add(7)

	r.Reset()

	snap := r.Snapshot()
	if snap != (Snapshot{}) {
		t.Errorf("Reset left non-zero counters: %+v", snap)
	}
}

func TestRegistryConcurrentIncrements(t *testing.T) {
	var r Registry
	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 1000

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				r.TotalEvents.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := r.TotalEvents.Load(); got != workers*perWorker {
		t.Errorf("TotalEvents = %d, want %d", got, workers*perWorker)
	}
}

func TestSnapshotJSON(t *testing.T) {
	var r Registry
	r.TotalWrites.Add(4)

	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"total_writes":4`) {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerOptions{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line emitted at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn line missing")
	}
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	if _, err := NewLogger(LoggerOptions{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewLogger(LoggerOptions{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLogHelpersNilSafe(t *testing.T) {
	// Every helper must tolerate a nil logger.
	LogCaptureStart(nil, "s", "p")
	LogCaptureStop(nil, "s", Snapshot{})
	LogQueueOverflow(nil, "key_press")
	LogWriteRetry(nil, 1, errDummy)
	LogWriteFailure(nil, 10, errDummy)
	LogRotation(nil, "p", 0)
	LogRotationFailure(nil, errDummy)
	LogBufferOverflow(nil, 10)
}

var errDummy = errors.New("dummy")
