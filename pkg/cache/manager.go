package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache timeouts.
const (
	DefaultTimeout  = 5 * time.Minute
	ShortTimeout    = 1 * time.Minute
	MediumTimeout   = 15 * time.Minute
	LongTimeout     = 1 * time.Hour
	VeryLongTimeout = 24 * time.Hour
	StaticTimeout   = 30 * 24 * time.Hour
)

// ModelTimeouts holds the cache TTL for each cached model.
var ModelTimeouts = map[string]time.Duration{
	"BlogPost":     MediumTimeout,
	"AITool":       LongTimeout,
	"Project":      LongTimeout,
	"PersonalInfo": VeryLongTimeout,
	"SocialLink":   VeryLongTimeout,
}

// ModelTimeout returns the TTL for model, or DefaultTimeout if it has none.
func ModelTimeout(model string) time.Duration {
	if ttl, ok := ModelTimeouts[model]; ok {
		return ttl
	}
	return DefaultTimeout
}

// scanBatchSize is the COUNT hint passed to each SCAN call.
const scanBatchSize = 100

// Config holds the manager configuration.
type Config struct {
	// KeyPrefix is the global key prefix (default "portfolio").
	KeyPrefix string

	// MaxKeyLength truncates generated keys (default 250).
	MaxKeyLength int

	// DefaultTimeout is used when Set is called without a TTL.
	DefaultTimeout time.Duration

	// SingleFlight coalesces concurrent GetOrSet misses for the same key within
	// this process. Off by default: duplicate computation is acceptable for
	// idempotent reads.
	SingleFlight bool
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      DefaultKeyPrefix,
		MaxKeyLength:   DefaultMaxKeyLength,
		DefaultTimeout: DefaultTimeout,
	}
}

// Manager wraps a Store with metrics, logging and failure isolation.
//
// A store outage never surfaces to callers: reads degrade to misses and writes
// report false. Every failure is counted in Metrics.
type Manager struct {
	store   Store
	scanner PatternScanner
	keys    *KeyBuilder
	metrics *Metrics
	logger  zerolog.Logger
	config  Config
	flight  *singleflight.Group
}

// NewManager creates a cache manager. metrics may be nil.
func NewManager(store Store, metrics *Metrics, logger zerolog.Logger, cfg Config) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}

	m := &Manager{
		store:   store,
		scanner: scannerFor(store),
		keys:    NewKeyBuilder(cfg.KeyPrefix, cfg.MaxKeyLength),
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}
	if cfg.SingleFlight {
		m.flight = &singleflight.Group{}
	}
	return m
}

// Keys returns the key builder bound to the manager's prefix.
func (m *Manager) Keys() *KeyBuilder {
	return m.keys
}

// Metrics returns the metrics recorder.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Get looks up key. A store error is logged, counted and reported as a miss.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	value, found, err := m.store.Get(ctx, key)
	if err != nil {
		m.metrics.RecordError()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache get error")
		return nil, false
	}
	if !found {
		m.metrics.RecordMiss()
		m.logger.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	m.metrics.RecordHit()
	m.logger.Debug().Str("key", key).Msg("Cache hit")
	return value, true
}

// Set stores value under key. A non-positive ttl uses the default timeout.
// It reports false if the store rejected the write; callers may proceed
// without caching.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = m.config.DefaultTimeout
	}

	if err := m.store.Set(ctx, key, value, ttl); err != nil {
		m.metrics.RecordError()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache set error")
		return false
	}

	m.metrics.RecordSet()
	m.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached value")
	return true
}

// Delete removes key.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	if err := m.store.Delete(ctx, key); err != nil {
		m.metrics.RecordError()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache delete error")
		return false
	}

	m.metrics.RecordDelete()
	return true
}

// GetOrSet returns the cached value for key, or calls compute, stores its
// result and returns it. Errors from compute are returned and nothing is
// cached. Without SingleFlight, concurrent misses may all call compute.
func (m *Manager) GetOrSet(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error), ttl time.Duration) ([]byte, error) {
	if value, ok := m.Get(ctx, key); ok {
		return value, nil
	}

	if m.flight == nil {
		return m.computeAndSet(ctx, key, compute, ttl)
	}

	res, err, shared := m.flight.Do(key, func() (any, error) {
		return m.computeAndSet(ctx, key, compute, ttl)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debug().Str("key", key).Msg("Shared in-flight computation")
	}
	return res.([]byte), nil
}

func (m *Manager) computeAndSet(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error), ttl time.Duration) ([]byte, error) {
	value, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	m.Set(ctx, key, value, ttl)
	return value, nil
}

// Ping checks store connectivity when the store supports it.
func (m *Manager) Ping(ctx context.Context) error {
	if p, ok := m.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GetJSON reads key and decodes it into T. A value that cannot be decoded is
// counted as an error and reported as a miss.
func GetJSON[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	var v T
	data, ok := m.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		m.metrics.RecordError()
		m.logger.Warn().Err(err).Str("key", key).Msg("Invalid cache entry")
		return v, false
	}
	return v, true
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, m *Manager, key string, v any, ttl time.Duration) bool {
	data, err := json.Marshal(v)
	if err != nil {
		m.metrics.RecordError()
		m.logger.Warn().Err(err).Str("key", key).Msg("Marshal cache value")
		return false
	}
	return m.Set(ctx, key, data, ttl)
}

// GetOrSetJSON is the typed form of GetOrSet. With SingleFlight enabled,
// concurrent misses share one computation and each caller decodes its own
// copy of the encoded result.
func GetOrSetJSON[T any](ctx context.Context, m *Manager, key string, compute func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	var zero T
	if v, ok := GetJSON[T](ctx, m, key); ok {
		return v, nil
	}

	if m.flight == nil {
		v, err := compute(ctx)
		if err != nil {
			return zero, fmt.Errorf("compute %s: %w", key, err)
		}
		SetJSON(ctx, m, key, v, ttl)
		return v, nil
	}

	res, err, shared := m.flight.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", key, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		m.Set(ctx, key, data, ttl)
		return data, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		m.logger.Debug().Str("key", key).Msg("Shared in-flight computation")
	}

	var v T
	if err := json.Unmarshal(res.([]byte), &v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}
