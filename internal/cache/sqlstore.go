package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/sqlcache/pkg/errors"
	"github.com/charlesng35/sqlcache/pkg/logger"
)

// SQLStore is a persistent, TTL-aware Store backed by one relational table
// of (k, d, e) rows: bounded key, opaque payload, nullable epoch-second
// expiration.
//
// Expiration is lazy: an expired row is reclaimed by the read that observes
// it, never by a background sweep, so storage held by abandoned keys is only
// freed on access, key reuse or Flush. Concurrency control is delegated
// entirely to the backing store; every operation is one blocking backend
// call and the upsert relies on the backend's native atomic conflict clause.
type SQLStore struct {
	backend Backend
	table   string
	clock   func() time.Time
	log     *zap.Logger
}

// SQLStoreOption customises SQLStore construction.
type SQLStoreOption func(*SQLStore)

// WithClock overrides the wall clock used for expiry decisions.
func WithClock(now func() time.Time) SQLStoreOption {
	return func(s *SQLStore) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewSQLStore binds the cache to an open backend and a table name, creating
// the table if it does not exist. The DDL is idempotent; constructing twice
// over the same table is safe. A rejected DDL (e.g. missing privileges) is
// returned, never swallowed.
func NewSQLStore(backend Backend, table string, opts ...SQLStoreOption) (*SQLStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("cache: nil backend")
	}
	if err := validTableName(table); err != nil {
		return nil, err
	}

	s := &SQLStore{
		backend: backend,
		table:   table,
		clock:   time.Now,
		log:     logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := backend.Exec(context.Background(), backend.Dialect().createTableSQL(table)); err != nil {
		return nil, fmt.Errorf("cache: create table %s: %w", table, err)
	}

	return s, nil
}

// Get looks up key and returns its payload. Absent and expired entries both
// report found=false; an expired entry is deleted before returning.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row, live, err := s.lookup(ctx, key, true)
	if err != nil || !live {
		return nil, false, err
	}

	payload, err := row.Bytes("d")
	if err != nil {
		return nil, false, apperrors.Storage("get", err)
	}
	return payload, true, nil
}

// Contains reports whether a live entry exists for key. The payload column
// is never selected, so large values cost nothing here.
func (s *SQLStore) Contains(ctx context.Context, key string) (bool, error) {
	_, live, err := s.lookup(ctx, key, false)
	return live, err
}

// lookup is the shared read path for Get and Contains. Liveness is decided
// against the clock at this read; two reads straddling the expiry boundary
// may disagree, which is inherent to TTL semantics.
func (s *SQLStore) lookup(ctx context.Context, key string, withPayload bool) (Row, bool, error) {
	columns := "k, e"
	if withPayload {
		columns = "k, d, e"
	}

	row, err := s.backend.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE k = ?", columns, s.table), key)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}

	expiry, err := row.NullInt64("e")
	if err != nil {
		return nil, false, apperrors.Storage("lookup", err)
	}
	if expiry != nil && *expiry < s.clock().Unix() {
		// Lazy reclaim; a failed cleanup still reports a miss.
		_, _ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return row, true, nil
}

// Put upserts key with the given payload. ttl > 0 stores an absolute expiry
// of now+ttl; ttl <= 0 stores NULL, meaning the entry never expires. Zero is
// a valid past timestamp, so it is never used as a no-expiry sentinel.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var expiry *int64
	if ttl > 0 {
		at := s.clock().Add(ttl).Unix()
		expiry = &at
	}

	err := s.backend.Exec(ctx, s.backend.Dialect().upsertSQL(s.table), key, value, expiry)
	return s.writeResult("put", key, err)
}

// Delete removes the row for key. Removing an absent key succeeds.
func (s *SQLStore) Delete(ctx context.Context, key string) (bool, error) {
	err := s.backend.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE k = ?", s.table), key)
	return s.writeResult("delete", key, err)
}

// Flush removes every row in the table.
func (s *SQLStore) Flush(ctx context.Context) (bool, error) {
	err := s.backend.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table))
	return s.writeResult("flush", "", err)
}

// Stats is a capability gap for the relational backend: the table tracks no
// hit/miss counters and scanning for a key count on every call would turn a
// cheap no-op into a full-table read.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	return Stats{Supported: false}, nil
}

// writeResult folds statement-level failures into the ok=false contract of
// the write operations, keeping connection-level failures as hard errors.
func (s *SQLStore) writeResult(op, key string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrStorage) {
		fields := []zap.Field{zap.String("op", op), zap.String("table", s.table), zap.Error(err)}
		if key != "" {
			fields = append(fields, zap.String("key", key))
		}
		s.log.Warn("cache write failed", fields...)
		return false, nil
	}
	return false, err
}

var _ Store = (*SQLStore)(nil)
