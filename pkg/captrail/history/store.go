// Package history records capture sessions and log rotations so past
// activity can be inspected after the fact.
package history

import (
	"errors"
	"time"

	"github.com/captrail/captrail/pkg/captrail/observability"
)

// Errors returned by stores.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("history store is closed")

	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
)

// Session describes one capture run.
type Session struct {
	// ID is the session's UUID.
	ID string

	// LogPath is the log file the session wrote to.
	LogPath string

	// StartedAt is when capture began.
	StartedAt time.Time

	// EndedAt is when capture stopped; zero while running.
	EndedAt time.Time

	// Stats is the session's final counter snapshot; zero while running.
	Stats observability.Snapshot
}

// Rotation describes one archived log file.
type Rotation struct {
	// SessionID is the session during which the rotation happened.
	SessionID string

	// ArchivePath is where the rotated file went.
	ArchivePath string

	// SizeBytes is the archived file's size.
	SizeBytes int64

	// RotatedAt is when the rotation completed.
	RotatedAt time.Time
}

// Store persists capture sessions and rotations.
// Implementations must be safe for concurrent use.
type Store interface {
	// StartSession records the beginning of a session.
	StartSession(sess Session) error

	// EndSession records a session's end time and final stats.
	// Returns ErrNotFound for an unknown session ID.
	EndSession(id string, endedAt time.Time, stats observability.Snapshot) error

	// RecordRotation records an archived log file.
	RecordRotation(rot Rotation) error

	// Sessions returns all sessions, most recent first.
	Sessions() ([]Session, error)

	// Rotations returns a session's rotations in chronological order.
	Rotations(sessionID string) ([]Rotation, error)

	// Close releases the store. Idempotent.
	Close() error
}
