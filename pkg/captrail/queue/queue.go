// Package queue provides the bounded multi-producer, single-consumer FIFO
// that decouples the capture callback from the disk pipeline.
//
// The producer side is time-bounded: Enqueue takes one short mutex, copies
// the value into a preallocated slot, and returns. It never blocks waiting
// for space and never allocates on the hot path. A full queue rejects the
// value rather than overwriting unread slots; the caller decides how to
// account for the drop.
package queue

import (
	"fmt"
	"sync"
)

// MinCapacity is the smallest usable queue size. One slot is always
// reserved to distinguish a full ring from an empty one.
const MinCapacity = 2

// Queue is a fixed-capacity ring buffer. The ring is full when
// (tail+1) mod len(slots) == head; only the single consumer advances head,
// only producers advance tail, and capacity never changes after New.
type Queue[T any] struct {
	mu    sync.Mutex
	slots []T
	head  int
	tail  int
}

// New creates a queue that holds up to capacity-1 pending values.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("queue capacity %d below minimum %d", capacity, MinCapacity)
	}
	return &Queue[T]{slots: make([]T, capacity)}, nil
}

// Enqueue appends v and reports whether it was accepted. A full queue
// rejects immediately; existing contents are never disturbed.
func (q *Queue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := (q.tail + 1) % len(q.slots)
	if next == q.head {
		return false
	}
	q.slots[q.tail] = v
	q.tail = next
	return true
}

// Dequeue removes and returns the oldest value in FIFO order. The second
// result is false when the queue is empty. Only one consumer may call
// Dequeue.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == q.tail {
		return zero, false
	}
	v := q.slots[q.head]
	q.slots[q.head] = zero // drop the reference so payloads can be collected
	q.head = (q.head + 1) % len(q.slots)
	return v, true
}

// Len returns the number of pending values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return (q.tail - q.head + len(q.slots)) % len(q.slots)
}

// Cap returns the maximum number of pending values (capacity minus the
// reserved slot).
func (q *Queue[T]) Cap() int {
	return len(q.slots) - 1
}

// IsFull reports whether the next Enqueue would be rejected.
func (q *Queue[T]) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return (q.tail+1)%len(q.slots) == q.head
}

// IsEmpty reports whether the queue holds no pending values.
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == q.tail
}

// Clear discards all pending values.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for i := range q.slots {
		q.slots[i] = zero
	}
	q.head = 0
	q.tail = 0
}
