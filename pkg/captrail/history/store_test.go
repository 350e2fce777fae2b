package history_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captrail/captrail/pkg/captrail/history"
	"github.com/captrail/captrail/pkg/captrail/observability"
)

// storeFactories lets every test run against both implementations.
var storeFactories = map[string]func(t *testing.T) history.Store{
	"sqlite": func(t *testing.T) history.Store {
		store, err := history.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	},
	"memory": func(t *testing.T) history.Store {
		store := history.NewMemoryStore()
		t.Cleanup(func() { store.Close() })
		return store
	},
}

func newSession(startedAt time.Time) history.Session {
	return history.Session{
		ID:        uuid.NewString(),
		LogPath:   "logs/captrail.log",
		StartedAt: startedAt,
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			started := time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC)
			sess := newSession(started)
			require.NoError(t, store.StartSession(sess))

			stats := observability.Snapshot{TotalEvents: 42, BytesWritten: 2048}
			ended := started.Add(time.Hour)
			require.NoError(t, store.EndSession(sess.ID, ended, stats))

			sessions, err := store.Sessions()
			require.NoError(t, err)
			require.Len(t, sessions, 1)

			got := sessions[0]
			assert.Equal(t, sess.ID, got.ID)
			assert.Equal(t, "logs/captrail.log", got.LogPath)
			assert.True(t, got.StartedAt.Equal(started))
			assert.True(t, got.EndedAt.Equal(ended))
			assert.Equal(t, uint64(42), got.Stats.TotalEvents)
			assert.Equal(t, uint64(2048), got.Stats.BytesWritten)
		})
	}
}

func TestEndUnknownSession(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			err := store.EndSession(uuid.NewString(), time.Now(), observability.Snapshot{})
			assert.ErrorIs(t, err, history.ErrNotFound)
		})
	}
}

func TestSessionsMostRecentFirst(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			base := time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC)
			var ids []string
			for i := 0; i < 3; i++ {
				sess := newSession(base.Add(time.Duration(i) * time.Hour))
				ids = append(ids, sess.ID)
				require.NoError(t, store.StartSession(sess))
			}

			sessions, err := store.Sessions()
			require.NoError(t, err)
			require.Len(t, sessions, 3)
			assert.Equal(t, ids[2], sessions[0].ID)
			assert.Equal(t, ids[0], sessions[2].ID)
		})
	}
}

func TestRotations(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			sess := newSession(time.Now().UTC())
			require.NoError(t, store.StartSession(sess))

			base := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)
			for i := 0; i < 2; i++ {
				require.NoError(t, store.RecordRotation(history.Rotation{
					SessionID:   sess.ID,
					ArchivePath: fmt.Sprintf("logs/captrail.log.2024031710%02d00", i),
					SizeBytes:   int64(1000 + i),
					RotatedAt:   base.Add(time.Duration(i) * time.Minute),
				}))
			}

			rots, err := store.Rotations(sess.ID)
			require.NoError(t, err)
			require.Len(t, rots, 2)
			assert.Equal(t, int64(1000), rots[0].SizeBytes)
			assert.Equal(t, int64(1001), rots[1].SizeBytes)

			other, err := store.Rotations(uuid.NewString())
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestClosedStore(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			require.NoError(t, store.Close())
			require.NoError(t, store.Close(), "close is idempotent")

			assert.ErrorIs(t, store.StartSession(newSession(time.Now())), history.ErrStoreClosed)
			_, err := store.Sessions()
			assert.ErrorIs(t, err, history.ErrStoreClosed)
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sess := newSession(time.Now().UTC())
					if err := store.StartSession(sess); err != nil {
						t.Error(err)
						return
					}
					if _, err := store.Sessions(); err != nil {
						t.Error(err)
					}
				}()
			}
			wg.Wait()

			sessions, err := store.Sessions()
			require.NoError(t, err)
			assert.Len(t, sessions, 8)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := history.NewSQLiteStore(path)
	require.NoError(t, err)

	sess := newSession(time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.StartSession(sess))
	require.NoError(t, store.Close())

	reopened, err := history.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	sessions, err := reopened.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.ID, sessions[0].ID)
}
