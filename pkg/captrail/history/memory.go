package history

import (
	"sort"
	"sync"
	"time"

	"github.com/captrail/captrail/pkg/captrail/observability"
)

// MemoryStore keeps session history in memory. Useful for tests and for
// runs where no history path is configured but callers still want the
// Store surface.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	rotations map[string][]Rotation
	closed    bool
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]Session),
		rotations: make(map[string][]Rotation),
	}
}

// StartSession implements Store.
func (s *MemoryStore) StartSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.sessions[sess.ID] = sess
	return nil
}

// EndSession implements Store.
func (s *MemoryStore) EndSession(id string, endedAt time.Time, stats observability.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.EndedAt = endedAt
	sess.Stats = stats
	s.sessions[id] = sess
	return nil
}

// RecordRotation implements Store.
func (s *MemoryStore) RecordRotation(rot Rotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.rotations[rot.SessionID] = append(s.rotations[rot.SessionID], rot)
	return nil
}

// Sessions implements Store.
func (s *MemoryStore) Sessions() ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Rotations implements Store.
func (s *MemoryStore) Rotations(sessionID string) ([]Rotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	rots := s.rotations[sessionID]
	out := make([]Rotation, len(rots))
	copy(out, rots)
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
