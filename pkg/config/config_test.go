package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
	"github.com/Sternrassler/portfolio-cache/pkg/ratelimit"
)

var envKeys = []string{
	"REDIS_URL", "REDIS_PASSWORD", "REDIS_DB",
	"CACHE_PREFIX", "CACHE_DEFAULT_TIMEOUT", "CACHE_MAX_KEY_LENGTH", "CACHE_SINGLE_FLIGHT",
	"DATABASE_URL", "MIGRATIONS_PATH",
	"HTTP_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "SLOW_REQUEST_THRESHOLD",
	"LOG_LEVEL", "LOG_PRETTY",
	"RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.URL)
	assert.Equal(t, cache.DefaultKeyPrefix, cfg.Cache.Prefix)
	assert.Equal(t, cache.DefaultTimeout, cfg.Cache.DefaultTimeout)
	assert.Equal(t, cache.DefaultMaxKeyLength, cfg.Cache.MaxKeyLength)
	assert.False(t, cfg.Cache.SingleFlight)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.SlowRequestThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ratelimit.DefaultRequests, cfg.RateLimit.Requests)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://:secret@cache.internal:6380/2")
	t.Setenv("CACHE_PREFIX", "site")
	t.Setenv("CACHE_DEFAULT_TIMEOUT", "600")
	t.Setenv("CACHE_SINGLE_FLIGHT", "true")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")
	t.Setenv("LOG_PRETTY", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "site", cfg.Cache.Prefix)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTimeout)
	assert.True(t, cfg.Cache.SingleFlight)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, ratelimit.DefaultRequests, cfg.RateLimit.Requests, "invalid ints fall back")
	assert.True(t, cfg.Log.Pretty)

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	mc := cfg.CacheManagerConfig()
	assert.Equal(t, "site", mc.KeyPrefix)
	assert.True(t, mc.SingleFlight)

	rl := cfg.RateLimiterConfig("api")
	assert.Equal(t, "api", rl.Scope)
	assert.Equal(t, 30*time.Second, rl.Window)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "prefix with separator", env: map[string]string{"CACHE_PREFIX": "a:b"}},
		{name: "negative timeout", env: map[string]string{"CACHE_DEFAULT_TIMEOUT": "-5s"}},
		{name: "key length too small", env: map[string]string{"CACHE_MAX_KEY_LENGTH": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRedisOptions_Address(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{URL: "redis:6379", Password: "pw", DB: 3}}

	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
}

func TestLoggingConfig(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "debug", Pretty: true}}

	lc := cfg.LoggingConfig()
	assert.Equal(t, "debug", string(lc.Level))
	assert.True(t, lc.Pretty)
	assert.NotNil(t, lc.Output)
}
