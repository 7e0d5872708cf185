package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"mysql":      DialectMySQL,
		"sqlite":     DialectSQLite,
		"sqlite3":    DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"pgx":        DialectPostgres,
		" MySQL ":    DialectMySQL,
	}
	for name, want := range cases {
		got, err := ParseDialect(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got)
	}

	_, err := ParseDialect("mssql")
	require.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS c (k VARCHAR(500) NOT NULL PRIMARY KEY, d LONGBLOB, e BIGINT NULL)",
		DialectMySQL.createTableSQL("c"))
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS c (k TEXT NOT NULL PRIMARY KEY, d BLOB, e INTEGER)",
		DialectSQLite.createTableSQL("c"))
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS c (k VARCHAR(500) NOT NULL PRIMARY KEY, d BYTEA, e BIGINT)",
		DialectPostgres.createTableSQL("c"))
}

func TestUpsertSQLUsesNativeConflictClause(t *testing.T) {
	require.Contains(t, DialectMySQL.upsertSQL("c"), "ON DUPLICATE KEY UPDATE")
	require.Contains(t, DialectSQLite.upsertSQL("c"), "ON CONFLICT (k) DO UPDATE")
	require.Contains(t, DialectPostgres.upsertSQL("c"), "ON CONFLICT (k) DO UPDATE")
}

func TestRebind(t *testing.T) {
	query := "INSERT INTO c (k, d, e) VALUES (?, ?, ?)"

	require.Equal(t, query, DialectMySQL.rebind(query))
	require.Equal(t, query, DialectSQLite.rebind(query))
	require.Equal(t,
		"INSERT INTO c (k, d, e) VALUES ($1, $2, $3)",
		DialectPostgres.rebind(query))
}

func TestValidTableName(t *testing.T) {
	for _, table := range []string{"cache_items", "Cache", "c", "c2", "_private"} {
		require.NoError(t, validTableName(table), table)
	}

	for _, table := range []string{
		"",
		"2cache",
		"cache items",
		"cache.items",
		"cache;--",
		"καταχώρηση",
	} {
		require.Error(t, validTableName(table), table)
	}
}
