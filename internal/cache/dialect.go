package cache

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor used for table creation, upserts and
// placeholder binding.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect normalizes a driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("cache: unsupported dialect %q", name)
	}
}

// createTableSQL returns the idempotent DDL for the cache table: a bounded
// key, an unbounded payload, and a nullable epoch-second expiration.
func (d Dialect) createTableSQL(table string) string {
	switch d {
	case DialectMySQL:
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (k VARCHAR(500) NOT NULL PRIMARY KEY, d LONGBLOB, e BIGINT NULL)",
			table,
		)
	case DialectPostgres:
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (k VARCHAR(500) NOT NULL PRIMARY KEY, d BYTEA, e BIGINT)",
			table,
		)
	default:
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (k TEXT NOT NULL PRIMARY KEY, d BLOB, e INTEGER)",
			table,
		)
	}
}

// upsertSQL returns the native single-statement upsert for (k, d, e).
// A delete+insert pair would open a window with no row, so every dialect
// uses its conflict clause instead.
func (d Dialect) upsertSQL(table string) string {
	if d == DialectMySQL {
		return fmt.Sprintf(
			"INSERT INTO %s (k, d, e) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE d = VALUES(d), e = VALUES(e)",
			table,
		)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (k, d, e) VALUES (?, ?, ?) ON CONFLICT (k) DO UPDATE SET d = excluded.d, e = excluded.e",
		table,
	)
}

// rebind rewrites `?` placeholders into the dialect's native style. Only
// postgres deviates; queries never contain literal question marks.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(fmt.Sprintf("%d", n))
	}
	return b.String()
}

// validTableName guards the one place a name is interpolated into SQL text:
// table names cannot be bound as parameters.
func validTableName(table string) error {
	if table == "" {
		return fmt.Errorf("cache: table name is required")
	}
	if len(table) > 64 {
		return fmt.Errorf("cache: table name %q exceeds 64 characters", table)
	}

	for i := 0; i < len(table); i++ {
		c := table[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return fmt.Errorf("cache: table name %q must not start with a digit", table)
			}
		default:
			return fmt.Errorf("cache: table name %q contains invalid character %q", table, c)
		}
	}
	return nil
}
