package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds limiter configuration.
type Config struct {
	// Requests allowed per client and window.
	Requests int

	// Window is the fixed window length.
	Window time.Duration

	// Scope separates independent limits sharing one Redis (e.g. "api", "admin").
	Scope string
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		Requests: DefaultRequests,
		Window:   DefaultWindow,
		Scope:    DefaultScope,
	}
}

type limiterMetrics struct {
	blocked *prometheus.CounterVec
	errors  prometheus.Counter
}

// Limiter counts requests per client in fixed windows stored in Redis.
type Limiter struct {
	redis   redis.UniversalClient
	config  Config
	logger  zerolog.Logger
	metrics limiterMetrics
	now     func() time.Time
}

// NewLimiter creates a limiter. reg may be nil to skip metric export.
func NewLimiter(client redis.UniversalClient, cfg Config, logger zerolog.Logger, reg prometheus.Registerer) *Limiter {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Window < time.Second {
		cfg.Window = DefaultWindow
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}

	factory := promauto.With(reg)
	return &Limiter{
		redis:  client,
		config: cfg,
		logger: logger,
		metrics: limiterMetrics{
			blocked: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "portfolio_rate_limit_blocks_total",
				Help: "Total number of requests rejected by the rate limiter",
			}, []string{"scope"}),
			errors: factory.NewCounter(prometheus.CounterOpts{
				Name: "portfolio_rate_limit_errors_total",
				Help: "Total number of rate limit checks that failed open on Redis errors",
			}),
		},
		now: time.Now,
	}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Key returns the Redis key counting client in the window containing now.
func (l *Limiter) Key(client string, now time.Time) string {
	start := windowStart(now, l.config.Window)
	return fmt.Sprintf("%s:%s:%s:%d", KeyPrefix, l.config.Scope, client, start.Unix())
}

// Allow counts one request for client. On Redis errors the returned decision
// allows the request and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, client string) (Decision, error) {
	now := l.now()
	decision := Decision{
		Allowed: true,
		Limit:   l.config.Requests,
		ResetAt: windowStart(now, l.config.Window).Add(l.config.Window),
	}

	key := l.Key(client, now)

	// Count and expire atomically
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return decision, fmt.Errorf("count request: %w", err)
	}

	decision.Count = incr.Val()
	decision.Allowed = decision.Count <= int64(l.config.Requests)
	return decision, nil
}

// Middleware rejects clients over the limit with 429 Too Many Requests.
// Redis failures let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := ClientIP(r)
		decision, err := l.Allow(r.Context(), client)
		if err != nil {
			l.metrics.errors.Inc()
			l.logger.Warn().Err(err).Str("client", client).Msg("Rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		decision.SetHeaders(w.Header(), l.now())
		if !decision.Allowed {
			l.metrics.blocked.WithLabelValues(l.config.Scope).Inc()
			l.logger.Warn().
				Str("client", client).
				Str("path", r.URL.Path).
				Int64("count", decision.Count).
				Int("limit", decision.Limit).
				Msg("Rate limit exceeded - blocking request")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote address of r.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
