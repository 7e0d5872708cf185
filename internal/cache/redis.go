package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/sqlcache/pkg/errors"
	"github.com/charlesng35/sqlcache/pkg/logger"
)

const (
	defaultRedisTimeout = 5 * time.Second
	defaultRedisPrefix  = "sqlcache:"
	redisFlushBatch     = 256
)

// RedisConfig captures the connection parameters for the Redis-backed Store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
	Prefix   string
}

// RedisStore implements Store on a Redis server. TTL handling maps directly
// onto Redis expiry, so unlike SQLStore there are no lazily reclaimed rows:
// the server evicts expired keys itself. Flush removes only keys under the
// store's prefix, never the whole database.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisStore connects eagerly so that misconfiguration surfaces at
// construction rather than on first use.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("cache: redis address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Connection("connect", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		log:    logger.WithModule("cache.redis"),
	}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classifyRedis("get", err)
	}
	return value, true, nil
}

func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, classifyRedis("contains", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // redis: zero expiration means the key persists
	}
	err := s.client.Set(ctx, s.prefix+key, value, ttl).Err()
	return s.writeResult("put", classifyRedis("put", err))
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	err := s.client.Del(ctx, s.prefix+key).Err()
	return s.writeResult("delete", classifyRedis("delete", err))
}

// Flush scans the keyspace under the store prefix and deletes it in batches.
func (s *RedisStore) Flush(ctx context.Context) (bool, error) {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", redisFlushBatch).Iterator()

	var flushErr error
	batch := make([]string, 0, redisFlushBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisFlushBatch {
			flushErr = multierr.Append(flushErr, s.client.Del(ctx, batch...).Err())
			batch = batch[:0]
		}
	}
	flushErr = multierr.Append(flushErr, iter.Err())
	if len(batch) > 0 {
		flushErr = multierr.Append(flushErr, s.client.Del(ctx, batch...).Err())
	}

	return s.writeResult("flush", classifyRedis("flush", flushErr))
}

// Stats is a capability gap here as well: per-prefix hit counters are not
// tracked server-side.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	return Stats{Supported: false}, nil
}

func (s *RedisStore) writeResult(op string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrStorage) {
		s.log.Warn("cache write failed", zap.String("op", op), zap.Error(err))
		return false, nil
	}
	return false, err
}

// classifyRedis maps client errors onto the cache taxonomy: server reply
// errors are statement-level, everything else means the connection is bad.
func classifyRedis(op string, err error) error {
	if err == nil {
		return nil
	}

	var replyErr redis.Error
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.Connection(op, err)
	case errors.As(err, &replyErr):
		return apperrors.Storage(op, err)
	}
	return apperrors.Connection(op, err)
}

var _ Store = (*RedisStore)(nil)
