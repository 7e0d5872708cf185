package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver   string            // sqlite, mysql or postgres
	Path     string            // SQLite database path when Driver == sqlite
	DSN      string            // Optional DSN override for any driver
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string // Extra driver options appended to the DSN
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg)
	case "mysql":
		return openMySQL(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLDB surfaces the raw database/sql handle behind a GORM session, used by
// callers that drive prepared statements directly.
func SQLDB(db *gorm.DB) (*sql.DB, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	return db.DB()
}
