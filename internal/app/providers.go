package app

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlcache/internal/cache"
	"github.com/charlesng35/sqlcache/internal/database"
	"github.com/charlesng35/sqlcache/pkg/logger"
)

// BuildStore wires the configured cache provider. The returned closer
// releases whatever connections the provider owns and is safe to call once.
func BuildStore(cfg *Config) (cache.Store, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("nil configuration")
	}

	log := logger.WithModule("app")
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Cache.Provider) {
	case "memory":
		return cache.NewMemoryStore(), noop, nil

	case "redis":
		store, err := cache.NewRedisStore(cfg.Cache.RedisStoreConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("initialise redis store: %w", err)
		}
		log.Info("redis cache connected", zap.String("addr", cfg.Cache.Redis.Address))
		return store, store.Close, nil

	case "sql", "":
		return buildSQLStore(cfg, log)

	default:
		return nil, nil, fmt.Errorf("unknown cache provider %q", cfg.Cache.Provider)
	}
}

func buildSQLStore(cfg *Config, log *zap.Logger) (cache.Store, func() error, error) {
	backend, closer, err := selectBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := cache.NewSQLStore(backend, cfg.Cache.Table)
	if err != nil {
		return nil, nil, multierr.Append(err, closer())
	}

	log.Info("sql cache ready",
		zap.String("dialect", string(backend.Dialect())),
		zap.String("backend", cfg.Cache.Backend),
		zap.String("table", cfg.Cache.Table))
	return store, closer, nil
}

// selectBackend opens the configured client style: a GORM session or a raw
// database/sql handle with natively registered drivers.
func selectBackend(cfg *Config) (cache.Backend, func() error, error) {
	dbCfg := cfg.Database.DatabaseConnectionConfig()

	switch strings.ToLower(cfg.Cache.Backend) {
	case "gorm", "":
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := database.SQLDB(db)
		if err != nil {
			return nil, nil, err
		}
		closer := func() error { return sqlDB.Close() }

		backend, err := cache.NewGORMBackend(db)
		if err != nil {
			return nil, nil, multierr.Append(err, closer())
		}
		return backend, closer, nil

	case "sql":
		sqlDB, driverName, err := database.OpenSQL(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		closer := func() error { return sqlDB.Close() }

		dialect, err := cache.ParseDialect(driverName)
		if err != nil {
			return nil, nil, multierr.Append(err, closer())
		}
		backend, err := cache.NewSQLBackend(sqlDB, dialect)
		if err != nil {
			return nil, nil, multierr.Append(err, closer())
		}
		return backend, closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
