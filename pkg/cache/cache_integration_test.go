//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/portfolio-cache/internal/testutil"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestIntegration_RedisStore_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	m := NewManager(NewRedisStore(client), nil, zerolog.Nop(), DefaultConfig())
	ctx := context.Background()

	value, err := m.GetOrSet(ctx, "portfolio:stats", func(context.Context) ([]byte, error) {
		return []byte(`{"visits":1}`), nil
	}, 2*time.Second)
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if string(value) != `{"visits":1}` {
		t.Errorf("value = %s", value)
	}

	if _, ok := m.Get(ctx, "portfolio:stats"); !ok {
		t.Fatal("value not cached")
	}

	// Redis expires the entry
	time.Sleep(2500 * time.Millisecond)
	if _, ok := m.Get(ctx, "portfolio:stats"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestIntegration_InvalidatePattern(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	m := NewManager(NewRedisStore(client), nil, zerolog.Nop(), DefaultConfig())
	ctx := context.Background()
	kb := m.Keys()

	// Enough keys to need several SCAN rounds
	for i := 0; i < 350; i++ {
		m.Set(ctx, kb.ModelKey("BlogPost", i+1, "single"), []byte("x"), time.Minute)
	}
	m.Set(ctx, kb.ModelKey("BlogPost", nil, "list"), []byte("[]"), time.Minute)
	m.Set(ctx, kb.ModelKey("AITool", nil, "list"), []byte("[]"), time.Minute)

	if got := m.InvalidateForModel(ctx, "BlogPost"); got != 351 {
		t.Errorf("InvalidateForModel() = %d, want 351", got)
	}

	remaining, err := client.Keys(ctx, "portfolio:*").Result()
	if err != nil {
		t.Fatalf("KEYS error = %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "portfolio:model:AITool:list" {
		t.Errorf("remaining keys = %v", remaining)
	}
}

func TestIntegration_WarmAllTwice(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	m := NewManager(NewRedisStore(client), nil, zerolog.Nop(), DefaultConfig())
	src := testutil.NewFakeContent()
	w := NewWarmer(m, DefaultWarmTargets(m.Keys(), src), zerolog.Nop())
	ctx := context.Background()

	first := w.WarmAll(ctx)
	if first.Warmed != 4 {
		t.Fatalf("first run = %+v, want 4 warmed", first)
	}

	second := w.WarmAll(ctx)
	if second.Warmed != 0 || second.Skipped != 4 {
		t.Errorf("second run = %+v, want 4 skipped", second)
	}

	ttl, err := client.TTL(ctx, "portfolio:model:PersonalInfo:single").Result()
	if err != nil {
		t.Fatalf("TTL error = %v", err)
	}
	if ttl <= VeryLongTimeout-time.Minute || ttl > VeryLongTimeout {
		t.Errorf("TTL = %v, want about %v", ttl, VeryLongTimeout)
	}
}

func TestIntegration_ModelChangeSignal(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	m := NewManager(NewRedisStore(client), nil, zerolog.Nop(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := m.Keys().ModelKey("SocialLink", nil, "list")
	m.Set(ctx, key, []byte("[]"), time.Hour)

	listener := NewModelChangeListener(m, client, zerolog.Nop())
	go listener.Start(ctx)
	defer listener.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := PublishModelChange(ctx, client, "SocialLink"); err != nil {
			t.Fatalf("PublishModelChange() error = %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		if _, ok := m.Get(ctx, key); !ok {
			return
		}
	}
	t.Fatalf("entry %s not invalidated by model change signal", key)
}
