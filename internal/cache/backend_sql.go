package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLBackend adapts a plain database/sql handle to the Backend interface
// using prepared statements. It covers drivers registered outside GORM,
// e.g. github.com/go-sql-driver/mysql or github.com/mattn/go-sqlite3.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLBackend wraps an already-open *sql.DB. The caller names the dialect
// since database/sql does not expose which driver backs the handle.
func NewSQLBackend(db *sql.DB, dialect Dialect) (*SQLBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("cache: nil sql handle")
	}

	switch dialect {
	case DialectMySQL, DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("cache: unsupported dialect %q", dialect)
	}

	return &SQLBackend{db: db, dialect: dialect}, nil
}

func (b *SQLBackend) Exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	stmt, err := b.db.PrepareContext(ctx, b.dialect.rebind(query))
	if err != nil {
		return classify("exec", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, args...)
	return classify("exec", err)
}

func (b *SQLBackend) QueryRow(ctx context.Context, query string, args ...any) (Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	stmt, err := b.db.PrepareContext(ctx, b.dialect.rebind(query))
	if err != nil {
		return nil, classify("query", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify("query", err)
		}
		return nil, nil
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify("query", err)
	}

	values := make([]any, len(columns))
	scans := make([]any, len(columns))
	for i := range values {
		scans[i] = &values[i]
	}
	if err := rows.Scan(scans...); err != nil {
		return nil, classify("query", err)
	}

	row := make(rowMap, len(columns))
	for i, name := range columns {
		row[name] = values[i]
	}
	return row, nil
}

func (b *SQLBackend) Dialect() Dialect {
	return b.dialect
}
