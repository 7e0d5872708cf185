package database

import (
	"database/sql"
	"fmt"
	"strings"

	// database/sql driver registrations for the non-GORM client path.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQL initialises a plain database/sql handle using the provided
// configuration, bypassing GORM entirely. It returns the handle and the
// driver name it was opened with.
func OpenSQL(cfg Config) (*sql.DB, string, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	var (
		driverName string
		dsn        string
		err        error
	)

	switch driver {
	case "sqlite", "sqlite3":
		driverName = "sqlite3"
		dsn, err = buildSQLiteDSN(cfg)
	case "mysql":
		driverName = "mysql"
		dsn, err = buildMySQLDSN(cfg)
	case "postgres", "postgresql":
		driverName = "pgx"
		dsn, err = buildPostgresDSN(cfg)
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", err
	}

	if driverName == "sqlite3" && (strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")) {
		// Shared-cache memory databases vanish when the last connection
		// closes; pin an idle connection so pooling cannot drop them.
		db.SetMaxIdleConns(1)
	}

	return db, driverName, nil
}
