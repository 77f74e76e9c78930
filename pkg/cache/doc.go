// Package cache provides the portfolio site's caching layer on top of a
// Redis-compatible store.
//
// The cache is an optimization, never a dependency: store failures are
// logged and counted, reads degrade to misses and writes report false.
//
// Features:
//
// - Deterministic cache keys (namespace, positional parts, hashed parameters)
// - Hit/miss/set/delete/error metrics with hit ratio
// - Get, Set, Delete and GetOrSet with failure isolation
// - Pattern invalidation via SCAN plus bulk delete
// - Cache warming of frequently read content
// - Cache-Control presets and weak ETags for HTTP responses
// - Model-change invalidation over Redis Pub/Sub
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	manager := cache.NewManager(
//		cache.NewRedisStore(redisClient),
//		cache.NewMetrics(prometheus.DefaultRegisterer),
//		logging.NewLogger("cache"),
//		cache.DefaultConfig(),
//	)
//
//	key := manager.Keys().ModelKey("BlogPost", 3, "single")
//	data, err := manager.GetOrSet(ctx, key, loadPost, cache.MediumTimeout)
//
// # Invalidation
//
//	// Removes portfolio:model:BlogPost:* entries
//	deleted := manager.InvalidateForModel(ctx, "BlogPost")
//
// Stores without the PatternScanner capability (such as MemoryStore) make
// invalidation a logged no-op returning 0.
//
// # Warming
//
//	warmer := cache.NewWarmer(manager, cache.DefaultWarmTargets(manager.Keys(), repo), logger)
//	summary := warmer.WarmAll(ctx)
//
// Warming never overwrites an existing entry, so a second run right after the
// first reports every target as skipped.
//
// # Metrics
//
// Counters are available through Manager.Metrics().Snapshot(). With a
// Prometheus registerer they are also exported as:
//
//   - portfolio_cache_operations_total{operation="hit|miss|set|delete|error"}
package cache
