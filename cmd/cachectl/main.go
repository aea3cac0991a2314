package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/achinchen/articles-assistant/internal/adapters/cli"
	"github.com/achinchen/articles-assistant/internal/bootstrap"
	"github.com/achinchen/articles-assistant/internal/config"
	"github.com/achinchen/articles-assistant/internal/core/ports"
	"github.com/achinchen/articles-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stderr, "cachectl", cfg.LogLevel, logging.FormatText))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Services{
		OpenCache: func(ctx context.Context) (ports.CacheAdmin, func(), error) {
			cache, store, err := bootstrap.NewCache(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return cache, func() { _ = store.Close() }, nil
		},
		OpenQuery: func(ctx context.Context) (ports.QueryService, func(), error) {
			app, err := bootstrap.New(ctx, cfg, nil)
			if err != nil {
				return nil, nil, err
			}
			return app.QueryUC, app.Close, nil
		},
		OpenEvents: func() (cli.ContentPublisher, func(), error) {
			events, err := bootstrap.NewContentEvents(cfg, nil)
			if err != nil {
				return nil, nil, err
			}
			return events, events.Close, nil
		},
	})

	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
