package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/achinchen/articles-assistant/internal/adapters/http"
	"github.com/achinchen/articles-assistant/internal/bootstrap"
	"github.com/achinchen/articles-assistant/internal/config"
	"github.com/achinchen/articles-assistant/internal/observability/logging"
	"github.com/achinchen/articles-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, httpMetrics.ResilienceMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	deps := httpadapter.Dependencies{
		Query:       app.QueryUC,
		Feedback:    app.QueryUC,
		Thresholds:  app.Thresholds,
		Enhancement: app.Enhancer,
		Corpus:      app.Store,
		Health:      map[string]httpadapter.HealthChecker{"postgres": app.Store},
		Metrics:     httpMetrics,
		Traffic: httpadapter.TrafficOptions{
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
			QueueTimeout:   cfg.APIQueueTimeout(),
		},
	}
	if app.Cache != nil {
		deps.Cache = app.Cache
		deps.Health["redis"] = app.CacheStore
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpadapter.NewRouter(deps).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "cache_enabled", app.Cache != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
