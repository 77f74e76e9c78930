// Package logging configures structured logging for the portfolio cache using
// zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used with NewLogger.
const (
	ComponentCache     = "cache"
	ComponentWarmer    = "warmer"
	ComponentSignals   = "signals"
	ComponentHTTP      = "http"
	ComponentRateLimit = "ratelimit"
	ComponentContent   = "content"
)

// DefaultService is the service field attached to every log line.
const DefaultService = "portfolio-cache"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is added as the "service" field (default: portfolio-cache).
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: DefaultService,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", service).Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Per-operation detail
//   - Cache hit/miss/set (key, ttl)
//   - Warmed targets
//   - Shared in-flight computations
//
// Info: Normal operation events
//   - Warming summaries (warmed, skipped, errors)
//   - Pattern invalidations (pattern, deleted)
//   - Model change signals handled
//   - Server startup/shutdown
//
// Warn: Degraded but working
//   - Cache store errors (reads fall back to misses)
//   - Store without pattern scan support
//   - Rate limit rejections and fail-open checks
//   - Slow requests
//
// Error: Needs attention
//   - Warm target failures
//   - Invalidation scan/delete failures
//   - Startup failures (Redis, database, migrations)
//
// Context Fields:
//   - key: Cache key
//   - pattern: Invalidation pattern
//   - model: Model name of an invalidation or signal
//   - target: Warm target name
//   - ttl: Cache entry TTL
//   - deleted: Number of keys removed
//   - client: Rate limited client address
