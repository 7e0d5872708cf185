package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/sqlcache/internal/database/testutil"
	apperrors "github.com/charlesng35/sqlcache/pkg/errors"
)

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}
}

// testBackends returns one instance of every backend variant over its own
// private database. The shared semantics suite runs against each so the two
// client styles stay behaviorally identical.
func testBackends(t *testing.T) map[string]Backend {
	t.Helper()

	gormBackend, err := NewGORMBackend(testutil.MustOpenTestDB(t))
	require.NoError(t, err)

	sqlBackend, err := NewSQLBackend(testutil.MustOpenTestSQLDB(t), DialectSQLite)
	require.NoError(t, err)

	return map[string]Backend{
		"gorm": gormBackend,
		"sql":  sqlBackend,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend Backend)) {
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, backend)
		})
	}
}

func mustNewStore(t *testing.T, backend Backend, clock *testClock) *SQLStore {
	t.Helper()

	store, err := NewSQLStore(backend, "cache_test", WithClock(clock.Now))
	require.NoError(t, err)
	return store
}

func rowCount(t *testing.T, backend Backend, table, key string) int64 {
	t.Helper()

	row, err := backend.QueryRow(context.Background(),
		fmt.Sprintf("SELECT COUNT(*) AS n FROM %s WHERE k = ?", table), key)
	require.NoError(t, err)
	require.NotNil(t, row)

	n, err := row.NullInt64("n")
	require.NoError(t, err)
	require.NotNil(t, n)
	return *n
}

func TestSQLStoreMissOnEmptyTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		store := mustNewStore(t, backend, newTestClock())
		ctx := context.Background()

		value, found, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, value)

		exists, err := store.Contains(ctx, "absent")
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func TestSQLStorePutGetRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		store := mustNewStore(t, backend, newTestClock())
		ctx := context.Background()

		ok, err := store.Put(ctx, "k", []byte("payload"), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		value, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("payload"), value)

		exists, err := store.Contains(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)
	})
}

func TestSQLStoreZeroTTLNeverExpires(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "forever", []byte("v"), 0)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(10 * 365 * 24 * time.Hour)

		value, found, err := store.Get(ctx, "forever")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v"), value)
	})
}

func TestSQLStoreNegativeTTLNeverExpires(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "k", []byte("v"), -time.Hour)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(48 * time.Hour)

		_, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
	})
}

func TestSQLStoreExpiryBoundary(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "k", []byte("v"), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		// Expiry is strict: an entry whose expiration equals the
		// current second is still live.
		clock.Advance(time.Minute)
		exists, err := store.Contains(ctx, "k")
		require.NoError(t, err)
		require.True(t, exists)

		clock.Advance(time.Second)
		exists, err = store.Contains(ctx, "k")
		require.NoError(t, err)
		require.False(t, exists)

		_, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestSQLStoreExpiredReadReclaimsRow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "doomed", []byte("v"), time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, 1, rowCount(t, backend, "cache_test", "doomed"))

		clock.Advance(2 * time.Second)

		_, found, err := store.Get(ctx, "doomed")
		require.NoError(t, err)
		require.False(t, found)
		require.EqualValues(t, 0, rowCount(t, backend, "cache_test", "doomed"))
	})
}

func TestSQLStoreContainsReclaimsExpiredRow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "doomed", []byte("v"), time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(2 * time.Second)

		exists, err := store.Contains(ctx, "doomed")
		require.NoError(t, err)
		require.False(t, exists)
		require.EqualValues(t, 0, rowCount(t, backend, "cache_test", "doomed"))
	})
}

func TestSQLStoreOverwriteReplacesPayloadAndExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "k", []byte("v1"), time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		// Second put resets the entry to never-expiring.
		ok, err = store.Put(ctx, "k", []byte("v2"), 0)
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, 1, rowCount(t, backend, "cache_test", "k"))

		clock.Advance(time.Hour)

		value, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v2"), value)
	})
}

func TestSQLStoreDeleteAbsentKeySucceeds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		store := mustNewStore(t, backend, newTestClock())

		ok, err := store.Delete(context.Background(), "never-existed")
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestSQLStoreFlushEmptiesTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		store := mustNewStore(t, backend, newTestClock())
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			ok, err := store.Put(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
			require.NoError(t, err)
			require.True(t, ok)
		}

		ok, err := store.Flush(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		for i := 0; i < 5; i++ {
			_, found, err := store.Get(ctx, fmt.Sprintf("k%d", i))
			require.NoError(t, err)
			require.False(t, found)
		}
	})
}

func TestSQLStoreStatsUnsupported(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		store := mustNewStore(t, backend, newTestClock())

		stats, err := store.Stats(context.Background())
		require.NoError(t, err)
		require.False(t, stats.Supported)
	})
}

func TestSQLStoreConstructionIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		first := mustNewStore(t, backend, clock)

		ok, err := first.Put(context.Background(), "k", []byte("v"), 0)
		require.NoError(t, err)
		require.True(t, ok)

		// Re-binding to the same table must not disturb existing rows.
		second := mustNewStore(t, backend, clock)
		value, found, err := second.Get(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v"), value)
	})
}

func TestSQLStoreRejectsInvalidTableNames(t *testing.T) {
	backend, err := NewGORMBackend(testutil.MustOpenTestDB(t))
	require.NoError(t, err)

	for _, table := range []string{
		"",
		"cache items",
		"cache;drop table users",
		"1cache",
		"cache-entries",
		"averyverylongtablenameaveryverylongtablenameaveryverylongtablename",
	} {
		_, err := NewSQLStore(backend, table)
		require.Error(t, err, "table %q", table)
	}
}

func TestSQLStoreClosedHandleFailsConstruction(t *testing.T) {
	sqlDB := testutil.MustOpenTestSQLDB(t)
	backend, err := NewSQLBackend(sqlDB, DialectSQLite)
	require.NoError(t, err)

	require.NoError(t, sqlDB.Close())

	_, err = NewSQLStore(backend, "cache_test")
	require.Error(t, err)
	require.True(t, apperrors.IsConnection(err))
}

func TestSQLStoreContainsSkipsPayloadColumn(t *testing.T) {
	inner, err := NewGORMBackend(testutil.MustOpenTestDB(t))
	require.NoError(t, err)
	backend := &recordingBackend{Backend: inner}

	store, err := NewSQLStore(backend, "cache_test")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.Put(ctx, "k", []byte("large payload"), 0)
	require.NoError(t, err)
	require.True(t, ok)

	backend.queries = nil
	_, err = store.Contains(ctx, "k")
	require.NoError(t, err)

	require.Len(t, backend.queries, 1)
	require.Equal(t, "SELECT k, e FROM cache_test WHERE k = ?", backend.queries[0])
}

func TestSQLStoreScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		clock := newTestClock()
		store := mustNewStore(t, backend, clock)
		ctx := context.Background()

		ok, err := store.Put(ctx, "a", []byte("v1"), 0)
		require.NoError(t, err)
		require.True(t, ok)

		value, found, err := store.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v1"), value)

		ok, err = store.Put(ctx, "b", []byte("v2"), time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		exists, err := store.Contains(ctx, "b")
		require.NoError(t, err)
		require.True(t, exists)

		clock.Advance(2 * time.Second)

		exists, err = store.Contains(ctx, "b")
		require.NoError(t, err)
		require.False(t, exists)

		_, found, err = store.Get(ctx, "b")
		require.NoError(t, err)
		require.False(t, found)

		ok, err = store.Flush(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		_, found, err = store.Get(ctx, "a")
		require.NoError(t, err)
		require.False(t, found)
	})
}

// recordingBackend captures queries so tests can assert their shape.
type recordingBackend struct {
	Backend
	queries []string
}

func (b *recordingBackend) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	b.queries = append(b.queries, query)
	return b.Backend.QueryRow(ctx, query, args...)
}
