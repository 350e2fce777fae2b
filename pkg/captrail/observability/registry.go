// Package observability provides the capture pipeline's observability
// surface: the monotonic stats registry, structured logging via slog,
// metrics via OpenTelemetry, and tracing via OpenTelemetry.
//
// Metrics and tracing are opt-in and have no-op implementations when
// disabled. The registry is always on: it is the pipeline's primary,
// dependency-free account of what happened.
package observability

import "sync/atomic"

// Registry holds the pipeline's counters. All counters increase
// monotonically and never decrease except through an explicit Reset.
// Every field is safe for concurrent use.
type Registry struct {
	TotalEvents     atomic.Uint64 // events accepted into the queue
	DroppedEvents   atomic.Uint64 // events rejected anywhere in the pipeline
	QueueOverflows  atomic.Uint64 // enqueue attempts against a full queue
	WindowChanges   atomic.Uint64 // foreground window transitions observed
	EventsBuffered  atomic.Uint64 // entries accepted by the aggregation buffer
	BufferOverflows atomic.Uint64 // entries the buffer could not make room for
	TotalWrites     atomic.Uint64 // successful file writes
	FailedWrites    atomic.Uint64 // writes that exhausted the retry budget
	BytesWritten    atomic.Uint64 // bytes durably appended
	RetryCount      atomic.Uint64 // individual failed write attempts
	FilesRotated    atomic.Uint64 // completed log rotations
	TotalFlushes    atomic.Uint64 // buffer flushes attempted
	FailedFlushes   atomic.Uint64 // buffer flushes that failed
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	TotalEvents     uint64 `json:"total_events"`
	DroppedEvents   uint64 `json:"dropped_events"`
	QueueOverflows  uint64 `json:"queue_overflows"`
	WindowChanges   uint64 `json:"window_changes"`
	EventsBuffered  uint64 `json:"events_buffered"`
	BufferOverflows uint64 `json:"buffer_overflows"`
	TotalWrites     uint64 `json:"total_writes"`
	FailedWrites    uint64 `json:"failed_writes"`
	BytesWritten    uint64 `json:"bytes_written"`
	RetryCount      uint64 `json:"retry_count"`
	FilesRotated    uint64 `json:"files_rotated"`
	TotalFlushes    uint64 `json:"total_flushes"`
	FailedFlushes   uint64 `json:"failed_flushes"`
}

// Snapshot returns a consistent-enough copy of the counters. Individual
// loads are atomic; the set is not taken under a single lock, which is fine
// for monotonic counters.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		TotalEvents:     r.TotalEvents.Load(),
		DroppedEvents:   r.DroppedEvents.Load(),
		QueueOverflows:  r.QueueOverflows.Load(),
		WindowChanges:   r.WindowChanges.Load(),
		EventsBuffered:  r.EventsBuffered.Load(),
		BufferOverflows: r.BufferOverflows.Load(),
		TotalWrites:     r.TotalWrites.Load(),
		FailedWrites:    r.FailedWrites.Load(),
		BytesWritten:    r.BytesWritten.Load(),
		RetryCount:      r.RetryCount.Load(),
		FilesRotated:    r.FilesRotated.Load(),
		TotalFlushes:    r.TotalFlushes.Load(),
		FailedFlushes:   r.FailedFlushes.Load(),
	}
}

// Reset zeroes every counter.
func (r *Registry) Reset() {
	r.TotalEvents.Store(0)
	r.DroppedEvents.Store(0)
	r.QueueOverflows.Store(0)
	r.WindowChanges.Store(0)
	r.EventsBuffered.Store(0)
	r.BufferOverflows.Store(0)
	r.TotalWrites.Store(0)
	r.FailedWrites.Store(0)
	r.BytesWritten.Store(0)
	r.RetryCount.Store(0)
	r.FilesRotated.Store(0)
	r.TotalFlushes.Store(0)
	r.FailedFlushes.Store(0)
}
