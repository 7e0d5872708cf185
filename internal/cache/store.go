package cache

import (
	"context"
	"time"
)

// Store is the cache-provider contract shared by every backend. Payloads are
// opaque byte slices; serialization is the caller's concern.
//
// Write operations report statement-level failures as ok=false with a nil
// error, and connection-level failures as a non-nil error. Reads cannot fold
// "query failed" into "not found", so they always propagate errors.
type Store interface {
	// Get returns the payload for key, or found=false when the key is
	// absent or expired. Reading an expired entry reclaims its storage.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Contains reports whether a live entry exists for key, without
	// transferring the payload. Same expiry semantics as Get.
	Contains(ctx context.Context, key string) (bool, error)

	// Put upserts key atomically. ttl > 0 sets an absolute expiry of
	// now+ttl; ttl <= 0 stores an entry that never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) (bool, error)

	// Flush removes every entry owned by the store.
	Flush(ctx context.Context) (bool, error)

	// Stats reports usage counters when the backend tracks them.
	// Supported=false is a capability gap, not an error.
	Stats(ctx context.Context) (Stats, error)
}

// Stats carries optional usage counters for backends that track them.
type Stats struct {
	Supported bool
	Hits      int64
	Misses    int64
	Keys      int64
}
