package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
	"github.com/Sternrassler/portfolio-cache/pkg/config"
	"github.com/Sternrassler/portfolio-cache/pkg/content"
	"github.com/Sternrassler/portfolio-cache/pkg/logging"
	"github.com/Sternrassler/portfolio-cache/pkg/metrics"
)

// Store backends selectable with --store.
const (
	storeRedis  = "redis"
	storeMemory = "memory"
)

type appOptions struct {
	store    string
	database bool
}

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	redis    *redis.Client // nil with the memory store
	manager  *cache.Manager
	db       *sqlx.DB // nil unless requested
	content  content.Source
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logging.NewLogger(logging.ComponentCache),
		registry: metrics.NewRegistry(),
	}

	var store cache.Store
	switch opts.store {
	case storeMemory:
		store = cache.NewMemoryStore()
	case storeRedis, "":
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		a.redis = redis.NewClient(redisOpts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			// The cache is optional: keep going and let the manager degrade
			a.logger.Warn().Err(err).Str("addr", redisOpts.Addr).Msg("Redis not reachable, cache will report errors")
		} else {
			a.logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		}
		store = cache.NewRedisStore(a.redis)
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", opts.store, storeRedis, storeMemory)
	}

	a.manager = cache.NewManager(store, cache.NewMetrics(a.registry), a.logger, cfg.CacheManagerConfig())

	if opts.database {
		if cfg.Database.URL == "" {
			a.Close()
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		db, err := content.Open(ctx, content.DefaultDBConfig(cfg.Database.URL))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		a.content = content.NewRepository(db)
		contentLogger := logging.NewLogger(logging.ComponentContent)
		contentLogger.Info().Msg("Connected to content database")
	}

	return a, nil
}

func (a *app) warmer() *cache.Warmer {
	return cache.NewWarmer(
		a.manager,
		cache.DefaultWarmTargets(a.manager.Keys(), a.content),
		logging.NewLogger(logging.ComponentWarmer),
	)
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
