package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/captrail/captrail/pkg/captrail/observability"
)

// SQLiteStore persists session history to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite history store.
// The path should be a file path (e.g., "./history.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			log_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			stats TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rotations (
			session_id TEXT NOT NULL,
			archive_path TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			rotated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rotations table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rotations_session_id
		ON rotations(session_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// StartSession implements Store.
func (s *SQLiteStore) StartSession(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, log_path, started_at)
		VALUES (?, ?, ?)
	`, sess.ID, sess.LogPath, sess.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// EndSession implements Store.
func (s *SQLiteStore) EndSession(id string, endedAt time.Time, stats observability.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at = ?, stats = ?
		WHERE id = ?
	`, endedAt.UTC().Format(time.RFC3339Nano), string(statsJSON), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRotation implements Store.
func (s *SQLiteStore) RecordRotation(rot Rotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO rotations (session_id, archive_path, size_bytes, rotated_at)
		VALUES (?, ?, ?, ?)
	`, rot.SessionID, rot.ArchivePath, rot.SizeBytes, rot.RotatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record rotation: %w", err)
	}
	return nil
}

// Sessions implements Store.
func (s *SQLiteStore) Sessions() ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, log_path, started_at, ended_at, stats
		FROM sessions
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var startedAt string
		var endedAt, statsJSON sql.NullString
		if err := rows.Scan(&sess.ID, &sess.LogPath, &startedAt, &endedAt, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if endedAt.Valid {
			sess.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt.String)
		}
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &sess.Stats); err != nil {
				return nil, fmt.Errorf("decode stats: %w", err)
			}
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Rotations implements Store.
func (s *SQLiteStore) Rotations(sessionID string) ([]Rotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT session_id, archive_path, size_bytes, rotated_at
		FROM rotations
		WHERE session_id = ?
		ORDER BY rotated_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rotations: %w", err)
	}
	defer rows.Close()

	var rotations []Rotation
	for rows.Next() {
		var rot Rotation
		var rotatedAt string
		if err := rows.Scan(&rot.SessionID, &rot.ArchivePath, &rot.SizeBytes, &rotatedAt); err != nil {
			return nil, fmt.Errorf("scan rotation: %w", err)
		}
		rot.RotatedAt, _ = time.Parse(time.RFC3339Nano, rotatedAt)
		rotations = append(rotations, rot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rotations: %w", err)
	}

	return rotations, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
