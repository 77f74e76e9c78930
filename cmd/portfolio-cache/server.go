package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
	"github.com/Sternrassler/portfolio-cache/pkg/content"
	"github.com/Sternrassler/portfolio-cache/pkg/metrics"
	"github.com/Sternrassler/portfolio-cache/pkg/middleware"
	"github.com/Sternrassler/portfolio-cache/pkg/ratelimit"
)

// modelRoutes maps cached models to the content API path serving them.
var modelRoutes = map[string]string{
	"BlogPost":     "/api/posts/",
	"AITool":       "/api/tools/",
	"PersonalInfo": "/api/profile/",
	"SocialLink":   "/api/social/",
}

// siteInvalidator clears a model's data entries together with the cached
// API responses built from them.
type siteInvalidator struct {
	manager *cache.Manager
}

func (s siteInvalidator) InvalidateForModel(ctx context.Context, model string) int {
	deleted := s.manager.InvalidateForModel(ctx, model)
	if route, ok := modelRoutes[model]; ok {
		deleted += s.manager.InvalidatePattern(ctx, "api:"+route)
	}
	return deleted
}

type serverDeps struct {
	Manager   *cache.Manager
	Warmer    *cache.Warmer
	Content   content.Source
	Limiter   *ratelimit.Limiter // optional
	Registry  *prometheus.Registry
	Logger    zerolog.Logger
	SlowAfter time.Duration
}

type server struct {
	deps        serverDeps
	invalidator siteInvalidator
}

func newRouter(deps serverDeps) http.Handler {
	s := &server{deps: deps, invalidator: siteInvalidator{manager: deps.Manager}}

	// A nil *Registry must not reach promauto as a non-nil Registerer
	var reg prometheus.Registerer
	if deps.Registry != nil {
		reg = deps.Registry
	}

	router := mux.NewRouter()
	router.Use(middleware.NewTiming(reg, deps.Logger, deps.SlowAfter).Handler)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.Vary)
	router.Use(middleware.CacheControl)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if deps.Registry != nil {
		router.Handle("/metrics", metrics.Handler(deps.Registry)).Methods(http.MethodGet)
	}

	admin := router.PathPrefix("/admin/cache").Subrouter()
	admin.HandleFunc("/metrics", s.handleCacheMetrics).Methods(http.MethodGet)
	admin.HandleFunc("/metrics/reset", s.handleCacheMetricsReset).Methods(http.MethodPost)
	admin.HandleFunc("/warm", s.handleWarm).Methods(http.MethodPost)
	admin.HandleFunc("/invalidate/{model}", s.handleInvalidate).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware)
	}
	api.Use(middleware.CacheView(deps.Manager, middleware.ViewOptions{
		TTL:    cache.ShortTimeout,
		Preset: cache.PresetAPI,
	}))
	api.HandleFunc("/posts/", s.handlePosts).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/tools/", s.handleTools).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/profile/", s.handleProfile).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/social/", s.handleSocial).Methods(http.MethodGet, http.MethodHead)

	return router
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "cache": "ok"}
	if err := s.deps.Manager.Ping(r.Context()); err != nil {
		// The site keeps serving without its cache
		status["cache"] = "unavailable"
		s.deps.Logger.Warn().Err(err).Msg("Cache store unreachable")
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) handleCacheMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Manager.Metrics().Snapshot())
}

func (s *server) handleCacheMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Manager.Metrics().Reset()
	s.deps.Logger.Info().Msg("Cache metrics reset")
	writeJSON(w, http.StatusOK, s.deps.Manager.Metrics().Snapshot())
}

func (s *server) handleWarm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Warmer.WarmAll(r.Context()))
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	model := strings.TrimSpace(mux.Vars(r)["model"])
	if model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	// Replicas share the Redis store, so deleting here is enough; the
	// model-change channel is for writers that cannot reach the admin API.
	deleted := s.invalidator.InvalidateForModel(r.Context(), model)

	writeJSON(w, http.StatusOK, map[string]any{
		"model":   model,
		"deleted": deleted,
	})
}

func (s *server) handlePosts(w http.ResponseWriter, r *http.Request) {
	serveModel(w, r, s, "BlogPost", "list", func(ctx context.Context) ([]content.PostSummary, error) {
		return s.deps.Content.PublishedPosts(ctx, cache.WarmPostsLimit)
	})
}

func (s *server) handleTools(w http.ResponseWriter, r *http.Request) {
	serveModel(w, r, s, "AITool", "list", func(ctx context.Context) ([]content.ToolSummary, error) {
		return s.deps.Content.VisibleTools(ctx, cache.WarmToolsLimit)
	})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	serveModel(w, r, s, "PersonalInfo", "single", func(ctx context.Context) (*content.PersonalInfo, error) {
		return s.deps.Content.PersonalInfo(ctx)
	})
}

func (s *server) handleSocial(w http.ResponseWriter, r *http.Request) {
	serveModel(w, r, s, "SocialLink", "list", s.deps.Content.SocialLinks)
}

// serveModel answers from the model cache shared with the warmer, loading
// and caching on a miss.
func serveModel[T any](w http.ResponseWriter, r *http.Request, s *server, model, action string, load func(context.Context) (T, error)) {
	key := s.deps.Manager.Keys().ModelKey(model, nil, action)
	data, err := cache.GetOrSetJSON(r.Context(), s.deps.Manager, key, load, cache.ModelTimeout(model))
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.deps.Logger.Error().Err(err).Str("model", model).Msg("Failed to load content")
		writeError(w, http.StatusInternalServerError, "failed to load content")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
