package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt *int64 // epoch seconds; nil means no expiry
}

// MemoryStore is an in-process Store with the same observable semantics as
// SQLStore: lazy expiry, NULL-style "never expires", idempotent deletes.
// It is the zero-configuration default and the test double for consumers.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
	hits    int64
	misses  int64
}

// MemoryStoreOption customises MemoryStore construction.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the wall clock used for expiry decisions.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewMemoryStore constructs an empty in-process store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, live := s.lookupLocked(key)
	if !live {
		s.misses++
		return nil, false, nil
	}

	s.hits++
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (s *MemoryStore) Contains(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, live := s.lookupLocked(key)
	if live {
		s.hits++
	} else {
		s.misses++
	}
	return live, nil
}

func (s *MemoryStore) lookupLocked(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expiresAt != nil && *entry.expiresAt < s.clock().Unix() {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var expiresAt *int64
	if ttl > 0 {
		at := s.clock().Add(ttl).Unix()
		expiresAt = &at
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) Flush(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]memoryEntry)
	return true, nil
}

// Stats reports hit/miss counters and the current key count. Expired keys
// that have not been read since expiring still count until reclaimed.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Supported: true,
		Hits:      s.hits,
		Misses:    s.misses,
		Keys:      int64(len(s.entries)),
	}, nil
}

var _ Store = (*MemoryStore)(nil)
