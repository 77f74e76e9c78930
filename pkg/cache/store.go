package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrScanUnsupported is returned by stores that cannot scan keys by pattern.
var ErrScanUnsupported = errors.New("pattern scan not supported by cache store")

// Store is the minimal key-value contract the manager needs. Expiry is the
// store's responsibility.
type Store interface {
	// Get returns the value for key. found is false when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value for key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PatternScanner is the optional capability used for pattern invalidation.
type PatternScanner interface {
	// Scan returns one batch of keys matching a glob pattern and the cursor for
	// the next call. A returned cursor of 0 ends the iteration.
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)

	// DeleteKeys removes keys in bulk and reports how many existed.
	DeleteKeys(ctx context.Context, keys ...string) (int64, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// scannerFor resolves the scan capability of a store once, at construction.
func scannerFor(store Store) PatternScanner {
	if s, ok := store.(PatternScanner); ok {
		return s
	}
	return unsupportedScanner{}
}

type unsupportedScanner struct{}

func (unsupportedScanner) Scan(context.Context, uint64, string, int64) ([]string, uint64, error) {
	return nil, 0, ErrScanUnsupported
}

func (unsupportedScanner) DeleteKeys(context.Context, ...string) (int64, error) {
	return 0, ErrScanUnsupported
}

// RedisStore implements Store and PatternScanner on top of a Redis client.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	keys, next, err := s.redis.Scan(ctx, cursor, match, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis scan: %w", err)
	}
	return keys, next, nil
}

func (s *RedisStore) DeleteKeys(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// MemoryStore is an in-process Store for local development and tests. It has
// no pattern scan capability, so pattern invalidation against it is a no-op.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(e) {
		// A Set may have replaced the entry since the read lock was released
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && s.expired(cur) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
