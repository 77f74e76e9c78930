// Package ratelimit implements a Redis-backed fixed-window request limiter.
// Counters are shared by every process using the same Redis, so the limit
// holds across replicas.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// KeyPrefix namespaces rate limit counters in Redis.
const KeyPrefix = "portfolio:ratelimit"

// Defaults for Config.
const (
	DefaultRequests = 100
	DefaultWindow   = time.Minute
	DefaultScope    = "global"
)

// Decision is the outcome of counting one request against a window.
type Decision struct {
	// Allowed is false once Count exceeds Limit within the window.
	Allowed bool `json:"allowed"`

	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Count is the number of requests seen in the current window, including
	// this one.
	Count int64 `json:"count"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns how many requests are left in the window.
func (d Decision) Remaining() int {
	left := int64(d.Limit) - d.Count
	if left < 0 {
		return 0
	}
	return int(left)
}

// RetryAfter returns the duration until the window resets, rounded up to a
// whole second. Returns 0 if the reset time has already passed.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	if rem := wait % time.Second; rem > 0 {
		wait += time.Second - rem
	}
	return wait
}

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After when the
// request was rejected.
func (d Decision) SetHeaders(h http.Header, now time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(d.RetryAfter(now).Seconds())))
	}
}

// windowStart returns the start of the fixed window containing now.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
