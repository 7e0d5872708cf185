package cache

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/charlesng35/sqlcache/pkg/errors"
)

// Backend abstracts the SQL client used to persist cache rows. The cache
// logic is written once against this interface; one adapter exists per
// client style (GORM session, database/sql prepared statements).
//
// Queries are written with `?` placeholders; adapters rebind them when their
// dialect uses a different style.
type Backend interface {
	// Exec runs a DDL or DML statement. Used parameterized for writes and
	// unparameterized for table creation and flush.
	Exec(ctx context.Context, query string, args ...any) error

	// QueryRow runs a single-row query. It returns a nil Row when no row
	// matched, which is distinct from an error.
	QueryRow(ctx context.Context, query string, args ...any) (Row, error)

	// Dialect identifies the SQL flavor, used to pick DDL and upsert text.
	Dialect() Dialect
}

// Row is one result row addressable by column name.
type Row interface {
	// Bytes returns the named column as a byte slice. NULL yields nil.
	Bytes(column string) ([]byte, error)

	// NullInt64 returns the named column as an integer, or nil when the
	// stored value is NULL.
	NullInt64(column string) (*int64, error)
}

// rowMap backs Row for both adapters: GORM scans raw queries into maps and
// the database/sql adapter assembles one from rows.Columns.
type rowMap map[string]any

func (r rowMap) Bytes(column string) ([]byte, error) {
	v, ok := r[column]
	if !ok {
		return nil, fmt.Errorf("cache: row has no column %q", column)
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("cache: column %q holds %T, want bytes", column, v)
	}
}

func (r rowMap) NullInt64(column string) (*int64, error) {
	v, ok := r[column]
	if !ok {
		return nil, fmt.Errorf("cache: row has no column %q", column)
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &val, nil
	case int:
		n := int64(val)
		return &n, nil
	case int32:
		n := int64(val)
		return &n, nil
	case uint64:
		n := int64(val)
		return &n, nil
	case []byte:
		// MySQL drivers hand numeric columns back as ASCII digits.
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cache: column %q: %w", column, err)
		}
		return &n, nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cache: column %q: %w", column, err)
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("cache: column %q holds %T, want integer", column, v)
	}
}

// classify maps a driver error onto the cache error taxonomy. Connection
// failures make the whole handle suspect; everything else is scoped to the
// statement that produced it.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, gorm.ErrInvalidDB),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return apperrors.Connection(op, err)
	case strings.Contains(err.Error(), "database is closed"):
		// database/sql keeps its closed-handle error unexported.
		return apperrors.Connection(op, err)
	}

	return apperrors.Storage(op, err)
}
