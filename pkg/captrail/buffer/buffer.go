// Package buffer implements the aggregation buffer that sits between
// event formatting and the log writer. Entries accumulate in memory and
// are flushed to the sink as a single write, reducing syscall pressure
// from the high-frequency capture path.
package buffer

import (
	"errors"
	"sync"
)

// MaxEntrySize bounds a single formatted entry. Anything larger is
// rejected outright rather than allowed to dominate the buffer.
const MaxEntrySize = 1024

// MinCapacity is the smallest useful buffer: one maximum-size entry.
const MinCapacity = MaxEntrySize

// FlushThreshold is the fill ratio at which MaybeFlush drains the buffer.
const FlushThreshold = 0.75

// ErrCapacity is returned by New for capacities below MinCapacity.
var ErrCapacity = errors.New("buffer capacity below minimum")

// Sink receives flushed buffer contents as a single durable write.
type Sink interface {
	Write(p []byte) error
}

// Buffer is a fixed-capacity byte accumulator. Appends are all-or-nothing:
// an entry either fits completely or is not admitted at all, so the sink
// never sees a torn entry. Safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	cap  int
	sink Sink
}

// New creates a buffer that flushes into sink.
func New(capacity int, sink Sink) (*Buffer, error) {
	if capacity < MinCapacity {
		return nil, ErrCapacity
	}
	if sink == nil {
		return nil, errors.New("buffer sink must not be nil")
	}
	return &Buffer{
		data: make([]byte, 0, capacity),
		cap:  capacity,
		sink: sink,
	}, nil
}

// Append admits entry into the buffer. When the entry does not fit it
// first flushes the current contents and retries once; if the entry still
// does not fit (or exceeds MaxEntrySize) it is rejected and the buffer is
// left unchanged. Returns whether the entry was admitted.
func (b *Buffer) Append(entry []byte) bool {
	if len(entry) == 0 {
		return true
	}
	if len(entry) > MaxEntrySize || len(entry) > b.cap {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data)+len(entry) > b.cap {
		if err := b.flushLocked(); err != nil {
			// Contents are retained for a later flush; this entry has
			// nowhere to go.
			return false
		}
	}
	if len(b.data)+len(entry) > b.cap {
		return false
	}

	b.data = append(b.data, entry...)
	return true
}

// MaybeFlush flushes when the buffer is at or above FlushThreshold.
// Returns the number of bytes flushed, or 0 when below threshold.
func (b *Buffer) MaybeFlush() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if float64(len(b.data)) < FlushThreshold*float64(b.cap) {
		return 0, nil
	}
	n := len(b.data)
	if err := b.flushLocked(); err != nil {
		return 0, err
	}
	return n, nil
}

// Flush drains the buffer into the sink unconditionally. A failed sink
// write retains the contents so nothing buffered is lost; a later flush
// tries again. Returns the number of bytes flushed.
func (b *Buffer) Flush() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.data)
	if err := b.flushLocked(); err != nil {
		return 0, err
	}
	return n, nil
}

// flushLocked writes the buffered bytes to the sink and empties the
// buffer on success. Caller holds b.mu.
func (b *Buffer) flushLocked() error {
	if len(b.data) == 0 {
		return nil
	}
	if err := b.sink.Write(b.data); err != nil {
		return err
	}
	b.data = b.data[:0]
	return nil
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Cap returns the buffer capacity in bytes.
func (b *Buffer) Cap() int {
	return b.cap
}

// Usage returns the fill ratio in [0, 1].
func (b *Buffer) Usage() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(len(b.data)) / float64(b.cap)
}

// IsEmpty reports whether nothing is buffered.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// Clear discards the buffered bytes without writing them.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
