// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
	"github.com/Sternrassler/portfolio-cache/pkg/logging"
	"github.com/Sternrassler/portfolio-cache/pkg/middleware"
	"github.com/Sternrassler/portfolio-cache/pkg/ratelimit"
)

type Config struct {
	Redis     RedisConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	HTTP      HTTPConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type RedisConfig struct {
	// URL is either a redis:// URL or a host:port address.
	URL      string
	Password string
	DB       int
}

type CacheConfig struct {
	Prefix         string
	DefaultTimeout time.Duration
	MaxKeyLength   int
	SingleFlight   bool
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
}

type HTTPConfig struct {
	Addr                 string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	SlowRequestThreshold time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Prefix:         getEnv("CACHE_PREFIX", cache.DefaultKeyPrefix),
			DefaultTimeout: getDurationEnv("CACHE_DEFAULT_TIMEOUT", cache.DefaultTimeout),
			MaxKeyLength:   getIntEnv("CACHE_MAX_KEY_LENGTH", cache.DefaultMaxKeyLength),
			SingleFlight:   getBoolEnv("CACHE_SINGLE_FLIGHT", false),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "pkg/content/migrations"),
		},
		HTTP: HTTPConfig{
			Addr:                 getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:          getDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:         getDurationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
			SlowRequestThreshold: getDurationEnv("SLOW_REQUEST_THRESHOLD", middleware.DefaultSlowRequestThreshold),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", ratelimit.DefaultRequests),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Cache.Prefix == "" {
		return fmt.Errorf("CACHE_PREFIX must not be empty")
	}
	if strings.Contains(c.Cache.Prefix, ":") {
		return fmt.Errorf("CACHE_PREFIX %q must not contain ':'", c.Cache.Prefix)
	}
	if c.Cache.DefaultTimeout <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TIMEOUT must be positive, got %s", c.Cache.DefaultTimeout)
	}
	if c.Cache.MaxKeyLength < len(c.Cache.Prefix)+2 {
		return fmt.Errorf("CACHE_MAX_KEY_LENGTH %d is too small for prefix %q", c.Cache.MaxKeyLength, c.Cache.Prefix)
	}
	return nil
}

// RedisOptions builds go-redis options from the Redis settings.
func (c *Config) RedisOptions() (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(c.Redis.URL, "redis://") || strings.HasPrefix(c.Redis.URL, "rediss://") {
		parsed, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: c.Redis.URL, DB: c.Redis.DB}
	}
	if c.Redis.Password != "" {
		opts.Password = c.Redis.Password
	}
	return opts, nil
}

// CacheManagerConfig returns the cache manager settings.
func (c *Config) CacheManagerConfig() cache.Config {
	return cache.Config{
		KeyPrefix:      c.Cache.Prefix,
		MaxKeyLength:   c.Cache.MaxKeyLength,
		DefaultTimeout: c.Cache.DefaultTimeout,
		SingleFlight:   c.Cache.SingleFlight,
	}
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RateLimiterConfig returns the limiter settings for scope.
func (c *Config) RateLimiterConfig(scope string) ratelimit.Config {
	return ratelimit.Config{
		Requests: c.RateLimit.Requests,
		Window:   c.RateLimit.Window,
		Scope:    scope,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") and plain seconds ("300").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
