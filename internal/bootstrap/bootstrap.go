package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/achinchen/articles-assistant/internal/config"
	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/usecase"
	"github.com/achinchen/articles-assistant/internal/infrastructure/cache/rediscache"
	"github.com/achinchen/articles-assistant/internal/infrastructure/llm/openai"
	"github.com/achinchen/articles-assistant/internal/infrastructure/queue/nats"
	"github.com/achinchen/articles-assistant/internal/infrastructure/repository/postgres"
	"github.com/achinchen/articles-assistant/internal/infrastructure/resilience"
	"github.com/achinchen/articles-assistant/internal/infrastructure/tokenizer"
)

type App struct {
	Config config.Config
	Tuning Tuning

	Store      *postgres.ChunkStore
	CacheStore *rediscache.Store
	Cache      *usecase.CacheService
	Thresholds *usecase.ThresholdOptimizer
	Enhancer   *usecase.QueryEnhancer
	QueryUC    *usecase.QueryUseCase

	closeFn func()
}

// New wires the query pipeline. observer may be nil. When CACHE_ENABLED is
// false, or Redis is unreachable at startup, the app runs without a cache.
func New(ctx context.Context, cfg config.Config, observer resilience.Observer) (*App, error) {
	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewChunkStore(db)

	var (
		cacheStore *rediscache.Store
		cache      *usecase.CacheService
	)
	if cfg.CacheEnabled {
		cacheStore, err = openCacheStore(ctx, cfg)
		if err != nil {
			slog.Warn("cache_disabled", "reason", "redis unavailable", "error", err)
		} else {
			cache = usecase.NewCacheService(cacheStore, tuning.Cache)
		}
	}

	executor := NewExecutor(cfg, observer)
	client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, openai.WithExecutor(executor))
	embedder := openai.NewEmbedder(client, cfg.OpenAIEmbedModel, cfg.EmbedBatchSize, cfg.EmbedBatchDelay())
	completer := openai.NewCompleter(client)
	counter := tokenizer.New(cfg.RAGModel)

	retriever := usecase.NewRetriever(embedder, store, cfg.RAGHybridCandidates)
	builder := usecase.NewContextBuilder(counter)
	generator := usecase.NewAnswerGenerator(completer, counter)
	optimizer := usecase.NewThresholdOptimizer(tuning.Threshold)
	enhancer := usecase.NewQueryEnhancer(completer, tuning.Enhancement)

	queryUC := usecase.NewQueryUseCase(retriever, builder, generator, usecase.QueryOptions{
		Defaults:       QueryDefaults(cfg),
		ArticleBaseURL: cfg.ArticleBaseURL,
		Enhancer:       enhancer,
		Optimizer:      optimizer,
		Cache:          cache,
	})

	return &App{
		Config: cfg,
		Tuning: tuning,

		Store:      store,
		CacheStore: cacheStore,
		Cache:      cache,
		Thresholds: optimizer,
		Enhancer:   enhancer,
		QueryUC:    queryUC,

		closeFn: func() {
			if cacheStore != nil {
				_ = cacheStore.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// NewCache opens only the Redis-backed cache service, for the worker and the CLI.
func NewCache(ctx context.Context, cfg config.Config) (*usecase.CacheService, *rediscache.Store, error) {
	tuning, err := LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, nil, err
	}
	store, err := openCacheStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return usecase.NewCacheService(store, tuning.Cache), store, nil
}

// NewContentEvents connects to NATS with the shared resilience settings.
func NewContentEvents(cfg config.Config, observer resilience.Observer) (*nats.ContentEvents, error) {
	events, err := nats.Connect(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: NewExecutor(cfg, observer),
	})
	if err != nil {
		return nil, fmt.Errorf("init content events: %w", err)
	}
	return events, nil
}

func NewExecutor(cfg config.Config, observer resilience.Observer) *resilience.Executor {
	var opts []resilience.Option
	if observer != nil {
		opts = append(opts, resilience.WithObserver(observer))
	}
	return resilience.NewExecutor(ResilienceConfig(cfg), opts...)
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     cfg.ResilienceRetryMultiplier,

		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenMaxCalls, 0)),
	}
}

func QueryDefaults(cfg config.Config) domain.QueryConfig {
	return domain.QueryConfig{
		TopK:                cfg.RAGTopK,
		SimilarityThreshold: cfg.RAGSimilarityThreshold,
		MaxContextTokens:    cfg.RAGMaxContextTokens,
		MaxResponseTokens:   cfg.RAGMaxResponseTokens,
		Model:               cfg.RAGModel,
		Temperature:         cfg.RAGTemperature,
		VectorWeight:        cfg.RAGVectorWeight,
		KeywordWeight:       cfg.RAGKeywordWeight,
	}
}

func openCacheStore(ctx context.Context, cfg config.Config) (*rediscache.Store, error) {
	store, err := rediscache.Open(ctx, rediscache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	return store, nil
}
