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

	"golang.org/x/sync/errgroup"

	"github.com/achinchen/articles-assistant/internal/bootstrap"
	"github.com/achinchen/articles-assistant/internal/config"
	"github.com/achinchen/articles-assistant/internal/core/usecase"
	"github.com/achinchen/articles-assistant/internal/observability/logging"
	"github.com/achinchen/articles-assistant/internal/observability/metrics"
)

// The worker keeps the answer cache honest: it drops cached answers when
// articles change and runs periodic maintenance.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	cache, store, err := bootstrap.NewCache(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	events, err := bootstrap.NewContentEvents(cfg, workerMetrics.ResilienceMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return events.SubscribeContentUpdated(gctx, func(handlerCtx context.Context, articleID string) error {
			invalidateCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
			defer cancel()

			workerMetrics.StartInvalidation()
			removed, err := cache.InvalidateOnContentUpdate(invalidateCtx)
			workerMetrics.FinishInvalidation(removed, err)
			if err != nil {
				return err
			}
			slog.Info("cache_invalidated_on_content_update", "article_id", articleID, "removed", removed)
			return nil
		})
	})
	g.Go(func() error {
		runMaintenanceLoop(gctx, cache, workerMetrics, cfg.CacheMaintenanceInterval())
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func runMaintenanceLoop(ctx context.Context, cache *usecase.CacheService, m *metrics.WorkerMetrics, interval time.Duration) {
	if interval <= 0 {
		slog.Info("cache_maintenance_disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()
			report, err := cache.RunMaintenance(ctx)
			m.RecordMaintenance(report, time.Since(started), err)
			if err != nil {
				slog.Warn("cache_maintenance_failed", "error", err)
				continue
			}
			slog.Info("cache_maintenance_completed",
				"cleared_for_low_hit_rate", report.ClearedForLowHitRate,
				"evicted_for_size", report.EvictedForSize,
				"used_memory_mb", report.UsedMemoryMB,
				"hit_rate", report.HitRate,
			)
		}
	}
}
