package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// QueryUseCase runs the answer pipeline: cache lookup, enhancement, threshold
// selection, retrieval, context assembly, generation and citation.
// The enhancer, optimizer and cache are optional.
type QueryUseCase struct {
	retriever *Retriever
	builder   *ContextBuilder
	generator *AnswerGenerator
	enhancer  *QueryEnhancer
	optimizer *ThresholdOptimizer
	cache     *CacheService

	defaults       domain.QueryConfig
	articleBaseURL string
	now            func() time.Time
}

type QueryOptions struct {
	Defaults       domain.QueryConfig
	ArticleBaseURL string
	Enhancer       *QueryEnhancer
	Optimizer      *ThresholdOptimizer
	Cache          *CacheService
}

func NewQueryUseCase(
	retriever *Retriever,
	builder *ContextBuilder,
	generator *AnswerGenerator,
	options QueryOptions,
) *QueryUseCase {
	defaults := options.Defaults
	if defaults.TopK <= 0 {
		defaults = domain.DefaultQueryConfig()
	}
	return &QueryUseCase{
		retriever:      retriever,
		builder:        builder,
		generator:      generator,
		enhancer:       options.Enhancer,
		optimizer:      options.Optimizer,
		cache:          options.Cache,
		defaults:       defaults,
		articleBaseURL: options.ArticleBaseURL,
		now:            time.Now,
	}
}

func (uc *QueryUseCase) Query(ctx context.Context, input domain.QueryInput) (*domain.QueryResponse, error) {
	started := uc.now()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("query is required"))
	}
	if input.Locale != "" && !input.Locale.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("unsupported locale %q", input.Locale))
	}
	cfg := input.Config.Merge(uc.defaults)
	if err := validateQueryConfig(cfg); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", err)
	}

	locale := input.Locale
	if locale == "" {
		locale = domain.DetectLocale(query)
	}
	method := domain.SearchMethodFor(input.UseHybridSearch)

	if uc.cache != nil {
		if cached := uc.cache.Get(ctx, query, input.Locale, input.UseHybridSearch, input.Config); cached != nil {
			return cached, nil
		}
	}

	retrievalQuery := query
	var enhancement *domain.QueryEnhancement
	if uc.enhancer != nil && uc.enhancer.ShouldEnhance(query) {
		enh := uc.enhancer.Enhance(ctx, query)
		if enh.Confidence > applyEnhancementAbove && strings.TrimSpace(enh.EnhancedQuery) != "" {
			enh.Applied = true
			retrievalQuery = enh.EnhancedQuery
		}
		enhancement = &enh
	}

	callerSetThreshold := input.Config != nil && input.Config.SimilarityThreshold != nil
	if uc.optimizer != nil && !callerSetThreshold {
		cfg.SimilarityThreshold = uc.optimizer.CalculateOptimalThreshold(query, runeLen(query), locale, input.UseHybridSearch)
	}

	chunks, err := uc.retrieve(ctx, retrievalQuery, input.Locale, cfg, input.UseHybridSearch)
	if err != nil {
		return nil, err
	}

	metadata := domain.QueryMetadata{
		QueryID:          uuid.NewString(),
		QueryLocale:      locale,
		ChunksRetrieved:  len(chunks),
		Model:            cfg.Model,
		SearchMethod:     method,
		Threshold:        cfg.SimilarityThreshold,
		QueryEnhancement: enhancement,
	}

	if len(chunks) == 0 {
		uc.recordPerformance(query, cfg.SimilarityThreshold, chunks)
		metadata.ResponseTimeMs = uc.now().Sub(started).Milliseconds()
		return &domain.QueryResponse{
			Answer:   noContentMessage(locale),
			Sources:  []domain.Source{},
			Metadata: metadata,
		}, nil
	}

	qctx := uc.builder.Build(chunks, cfg, locale)
	generated, err := uc.generator.Generate(ctx, query, qctx, cfg)
	if err != nil {
		return nil, err
	}

	sources := BuildSources(qctx.Chunks, uc.articleBaseURL)
	if ok, invalid := ValidateCitations(generated.Answer, sources); !ok {
		slog.Warn("citation_out_of_range",
			"query_id", metadata.QueryID,
			"invalid_citations", invalid,
			"source_count", len(sources),
		)
	}

	uc.recordPerformance(query, cfg.SimilarityThreshold, chunks)

	metadata.ChunksUsed = len(qctx.Chunks)
	metadata.TokensUsed = generated.TokensUsed
	metadata.ResponseTimeMs = uc.now().Sub(started).Milliseconds()
	resp := &domain.QueryResponse{
		Answer:   generated.Answer,
		Sources:  sources,
		Metadata: metadata,
	}

	if uc.cache != nil {
		uc.cache.Set(ctx, query, input.Locale, input.UseHybridSearch, input.Config, resp)
	}
	return resp, nil
}

// Feedback records a thumbs-up (+1) or thumbs-down (-1) for an earlier query.
// It reports whether a matching query was found in the optimizer history.
func (uc *QueryUseCase) Feedback(_ context.Context, query string, rating int) (bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return false, domain.WrapError(domain.ErrInvalidInput, "feedback", fmt.Errorf("query is required"))
	}
	var score float64
	switch rating {
	case 1:
		score = 1
	case -1:
		score = 0
	default:
		return false, domain.WrapError(domain.ErrInvalidInput, "feedback", fmt.Errorf("rating must be 1 or -1, got %d", rating))
	}
	if uc.optimizer == nil {
		return false, nil
	}
	return uc.optimizer.RecordRating(query, score), nil
}

func (uc *QueryUseCase) retrieve(ctx context.Context, query string, locale domain.Locale, cfg domain.QueryConfig, hybrid bool) ([]domain.RetrievedChunk, error) {
	if hybrid {
		return uc.retriever.HybridRetrieve(ctx, query, locale, cfg)
	}
	return uc.retriever.Retrieve(ctx, query, locale, cfg)
}

func (uc *QueryUseCase) recordPerformance(query string, threshold float64, chunks []domain.RetrievedChunk) {
	if uc.optimizer == nil {
		return
	}
	uc.optimizer.RecordPerformance(query, threshold, chunks, nil)
}

func validateQueryConfig(cfg domain.QueryConfig) error {
	if cfg.VectorWeight < 0 || cfg.KeywordWeight < 0 {
		return fmt.Errorf("weights must be non-negative (vector=%.2f keyword=%.2f)", cfg.VectorWeight, cfg.KeywordWeight)
	}
	if cfg.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if cfg.MaxContextTokens <= 0 || cfg.MaxResponseTokens <= 0 {
		return fmt.Errorf("token budgets must be positive")
	}
	return nil
}
