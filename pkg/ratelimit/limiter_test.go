package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis returns a client for a local Redis, skipping the test when
// none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(unreachableRedis(t), Config{Window: time.Millisecond}, zerolog.Nop(), nil)

	cfg := l.Config()
	if cfg.Requests != DefaultRequests || cfg.Window != DefaultWindow || cfg.Scope != DefaultScope {
		t.Errorf("Config() = %+v, want defaults", cfg)
	}
}

func TestNewLimiter_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLimiter should panic with nil client")
		}
	}()
	NewLimiter(nil, DefaultConfig(), zerolog.Nop(), nil)
}

func TestLimiter_Key(t *testing.T) {
	l := NewLimiter(unreachableRedis(t), Config{Requests: 5, Window: time.Minute, Scope: "api"}, zerolog.Nop(), nil)

	a := l.Key("10.0.0.1", time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC))
	b := l.Key("10.0.0.1", time.Date(2026, 3, 1, 10, 0, 55, 0, time.UTC))
	c := l.Key("10.0.0.1", time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC))

	if a != b {
		t.Errorf("same window produced %s and %s", a, b)
	}
	if a == c {
		t.Errorf("next window reused key %s", a)
	}
	if !strings.HasPrefix(a, "portfolio:ratelimit:api:10.0.0.1:") {
		t.Errorf("Key() = %s", a)
	}
}

func TestLimiter_Middleware_FailsOpen(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewLimiter(unreachableRedis(t), DefaultConfig(), zerolog.Nop(), reg)

	rec := httptest.NewRecorder()
	l.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when Redis is down", rec.Code)
	}
	if got := testutil.ToFloat64(l.metrics.errors); got != 1 {
		t.Errorf("errors counter = %v, want 1", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:80", want: "198.51.100.7"},
		{name: "no port", remote: "192.0.2.9", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimiter_Allow_Redis(t *testing.T) {
	client := setupTestRedis(t)
	l := NewLimiter(client, Config{Requests: 3, Window: time.Minute, Scope: "test"}, zerolog.Nop(), nil)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		d, err := l.Allow(ctx, "client-a")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if wantAllowed := i <= 3; d.Allowed != wantAllowed {
			t.Errorf("request %d: Allowed = %v, want %v", i, d.Allowed, wantAllowed)
		}
		if d.Count != int64(i) {
			t.Errorf("request %d: Count = %d", i, d.Count)
		}
	}

	// Other clients have their own counter
	d, err := l.Allow(ctx, "client-b")
	if err != nil || !d.Allowed {
		t.Errorf("client-b: Allowed = %v, err = %v", d.Allowed, err)
	}

	ttl, err := client.TTL(ctx, l.Key("client-a", time.Now())).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}
