package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
	"github.com/Sternrassler/portfolio-cache/pkg/config"
	"github.com/Sternrassler/portfolio-cache/pkg/content"
	"github.com/Sternrassler/portfolio-cache/pkg/logging"
	"github.com/Sternrassler/portfolio-cache/pkg/ratelimit"
)

func serveCmd(getConfig func() *config.Config) *cobra.Command {
	var (
		listenAddr string
		store      string
		warmOnBoot bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the content API",
		Long:  "Run the HTTP server: content API behind the view cache, admin cache endpoints and Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if listenAddr == "" {
				listenAddr = cfg.HTTP.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{store: store, database: true})
			if err != nil {
				return err
			}
			defer a.Close()

			httpLogger := logging.NewLogger(logging.ComponentHTTP)
			deps := serverDeps{
				Manager:   a.manager,
				Warmer:    a.warmer(),
				Content:   a.content,
				Registry:  a.registry,
				Logger:    httpLogger,
				SlowAfter: cfg.HTTP.SlowRequestThreshold,
			}

			if a.redis != nil {
				deps.Limiter = ratelimit.NewLimiter(a.redis, cfg.RateLimiterConfig("api"),
					logging.NewLogger(logging.ComponentRateLimit), a.registry)

				listener := cache.NewModelChangeListener(siteInvalidator{manager: a.manager}, a.redis,
					logging.NewLogger(logging.ComponentSignals))
				go listener.Start(ctx)
				defer listener.Close()
			}

			if warmOnBoot {
				summary := deps.Warmer.WarmAll(ctx)
				httpLogger.Info().Int("warmed", summary.Warmed).Int("errors", summary.Errors).Msg("Warmed cache on startup")
			}

			httpServer := &http.Server{
				Addr:         listenAddr,
				Handler:      newRouter(deps),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				httpLogger.Info().Str("addr", listenAddr).Str("store", store).Msg("Portfolio cache server started")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				httpLogger.Info().Msg("Shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown server: %w", err)
				}
				return nil
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default HTTP_ADDR)")
	cmd.Flags().StringVar(&store, "store", storeRedis, "Cache store: redis or memory")
	cmd.Flags().BoolVar(&warmOnBoot, "warm", false, "Warm the cache before accepting requests")

	return cmd
}

func warmCmd(getConfig func() *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Pre-populate frequently read cache entries",
		Long:  "Fetch the published posts, visible tools, personal info and social links and cache every entry that is not cached yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig(), appOptions{store: storeRedis, database: true})
			if err != nil {
				return err
			}
			defer a.Close()

			summary := a.warmer().WarmAll(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndented(out, summary)
			}
			printWarmSummary(out, summary)
			if summary.Errors > 0 {
				return fmt.Errorf("%d warm target(s) failed", summary.Errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func printWarmSummary(w io.Writer, summary cache.WarmSummary) {
	for _, d := range summary.Details {
		line := fmt.Sprintf("  %-16s %-8s %s", d.Name, d.Status, d.Key)
		if d.Error != "" {
			line += "  (" + d.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "warmed=%d skipped=%d errors=%d\n", summary.Warmed, summary.Skipped, summary.Errors)
}

func invalidateCmd(getConfig func() *config.Config) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "invalidate <Model>",
		Short: "Invalidate every cached entry of a model",
		Long: "Delete the cached data and API responses of a model. With --publish the change is " +
			"announced on the model-change channel instead and the running servers invalidate it",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig(), appOptions{store: storeRedis})
			if err != nil {
				return err
			}
			defer a.Close()

			var publisher redis.UniversalClient
			if a.redis != nil {
				publisher = a.redis
			}
			return invalidateModel(cmd.Context(), cmd.OutOrStdout(), a.manager, publisher, args[0], publish)
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "Publish a model change for the running servers instead of deleting directly")
	return cmd
}

// invalidateModel either deletes the model's entries or publishes the change,
// never both: listeners share the same store.
func invalidateModel(ctx context.Context, out io.Writer, mgr *cache.Manager, publisher redis.UniversalClient, model string, publish bool) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model name must not be empty")
	}

	if publish {
		if publisher == nil {
			return fmt.Errorf("publishing requires a Redis connection")
		}
		if err := cache.PublishModelChange(ctx, publisher, model); err != nil {
			return err
		}
		fmt.Fprintf(out, "Published change for %s on %s\n", model, cache.ModelChangedChannel)
		return nil
	}

	deleted := siteInvalidator{manager: mgr}.InvalidateForModel(ctx, model)
	fmt.Fprintf(out, "Invalidated %d key(s) for %s\n", deleted, model)
	return nil
}

func invalidatePatternCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate-pattern <pattern>",
		Short: "Delete cached keys starting with <prefix>:<pattern>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), getConfig(), appOptions{store: storeRedis})
			if err != nil {
				return err
			}
			defer a.Close()

			deleted := a.manager.InvalidatePattern(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d key(s) matching %s:%s*\n", deleted, a.manager.Keys().Prefix(), args[0])
			return nil
		},
	}
}

// metricsCmd reads the counters of a running server; they live in its
// process.
func metricsCmd() *cobra.Command {
	var (
		serverURL string
		reset     bool
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the cache metrics of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := strings.TrimRight(serverURL, "/") + "/admin/cache/metrics"
			method := http.MethodGet
			if reset {
				endpoint += "/reset"
				method = http.MethodPost
			}

			snapshot, err := fetchMetrics(cmd.Context(), method, endpoint)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), snapshot)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the running server")
	cmd.Flags().BoolVar(&reset, "reset", false, "Reset the counters")
	return cmd
}

func fetchMetrics(ctx context.Context, method, endpoint string) (cache.MetricsSnapshot, error) {
	var snapshot cache.MetricsSnapshot

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return snapshot, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snapshot, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot, fmt.Errorf("request %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return snapshot, fmt.Errorf("decode metrics: %w", err)
	}
	return snapshot, nil
}

func migrateCmd(getConfig func() *config.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the content schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			if path == "" {
				path = cfg.Database.MigrationsPath
			}

			db, err := content.Open(cmd.Context(), content.DefaultDBConfig(cfg.Database.URL))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := content.Migrate(db, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Migrations directory (default MIGRATIONS_PATH)")
	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

