// Package main is the entrypoint for the consulta API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/consulta/internal/api"
	"github.com/kiranshivaraju/consulta/internal/api/handler"
	mw "github.com/kiranshivaraju/consulta/internal/api/middleware"
	"github.com/kiranshivaraju/consulta/internal/cache"
	"github.com/kiranshivaraju/consulta/internal/config"
	"github.com/kiranshivaraju/consulta/internal/lookup"
	"github.com/kiranshivaraju/consulta/internal/metrics"
	"github.com/kiranshivaraju/consulta/internal/payment"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/internal/upstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "upstream", cfg.Upstream.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build router
	router := newRouter(cfg, store.NewPostgresStore(pool), redisCache, upstream.NewHTTPClient(cfg.Upstream), metrics.New())

	// 6. Start HTTP server. WriteTimeout leaves room for the upstream call.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRouter wires services and handlers onto the HTTP router.
func newRouter(cfg *config.Config, st store.Store, c cache.Cache, up upstream.Client, m *metrics.Metrics) http.Handler {
	lookups := lookup.NewService(st, up, m)
	payments := payment.NewService(st, m)

	return api.NewRouter(api.Dependencies{
		RateLimit:         mw.NewRateLimit(c, cfg.RateLimit.RequestsPerMinute, m),
		WebhookSecret:     cfg.Webhook.Secret,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,

		HealthHandler:     handler.NewHealthHandler(st, c),
		MetricsHandler:    m.Handler(),
		LookupHandler:     handler.NewLookupHandler(lookups, cfg.Lookup.DomainHeader),
		BalanceHandler:    handler.NewBalanceHandler(lookups, cfg.Lookup.DomainHeader),
		PixWebhookHandler: handler.NewPixWebhookHandler(payments),
	})
}
