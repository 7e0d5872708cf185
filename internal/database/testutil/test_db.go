package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/sqlcache/internal/database"
)

// MustOpenTestDB opens a private in-memory SQLite database for tests via the
// GORM stack. Each call gets its own database; the connection is closed via
// t.Cleanup.
func MustOpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    memoryDSN(),
	})
	require.NoError(t, err)

	sqlDB, err := database.SQLDB(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// MustOpenTestSQLDB opens a private in-memory SQLite database directly on
// database/sql, for code paths that bypass GORM.
func MustOpenTestSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	db, _, err := database.OpenSQL(database.Config{
		Driver: "sqlite",
		DSN:    memoryDSN(),
	})
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}
