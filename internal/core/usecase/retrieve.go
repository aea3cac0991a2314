package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
)

const (
	defaultHybridCandidates = 100
	vectorDiagnosticLimit   = 5
	hybridDiagnosticLimit   = 3
)

type Retriever struct {
	embedder         ports.Embedder
	store            ports.ChunkStore
	hybridCandidates int
}

func NewRetriever(embedder ports.Embedder, store ports.ChunkStore, hybridCandidates int) *Retriever {
	if hybridCandidates <= 0 {
		hybridCandidates = defaultHybridCandidates
	}
	return &Retriever{
		embedder:         embedder,
		store:            store,
		hybridCandidates: hybridCandidates,
	}
}

// Retrieve returns chunks whose cosine similarity clears cfg.SimilarityThreshold,
// best first, capped at cfg.TopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, locale domain.Locale, cfg domain.QueryConfig) ([]domain.RetrievedChunk, error) {
	const op = "retrieve chunks"

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("embed query: %w", err))
	}

	threshold := cfg.SimilarityThreshold
	chunks, err := r.store.SearchByVector(ctx, queryVector, domain.VectorSearch{
		Threshold: &threshold,
		Locale:    locale,
		Limit:     cfg.TopK,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("search by vector: %w", err))
	}

	if len(chunks) == 0 {
		r.logNearestMisses(ctx, queryVector, vectorDiagnosticLimit, threshold, domain.SearchMethodVector)
	}
	return trimCandidates(chunks, cfg.TopK), nil
}

// HybridRetrieve ranks chunks by vectorWeight*vectorScore + keywordWeight*keywordScore.
func (r *Retriever) HybridRetrieve(ctx context.Context, query string, locale domain.Locale, cfg domain.QueryConfig) ([]domain.RetrievedChunk, error) {
	const op = "hybrid retrieve chunks"

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("embed query: %w", err))
	}

	vectorLimit := r.hybridCandidates
	if cfg.TopK > vectorLimit {
		vectorLimit = cfg.TopK
	}
	vectorHits, err := r.store.SearchByVector(ctx, queryVector, domain.VectorSearch{
		Locale: locale,
		Limit:  vectorLimit,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("search by vector: %w", err))
	}

	// Every keyword match is fused. Any chunk outside both sets scores at most
	// VectorWeight times the weakest vector candidate, so the top TopK stay exact.
	var keywordHits []domain.RetrievedChunk
	if tsQuery := BuildKeywordQuery(query); tsQuery != "" {
		keywordHits, err = r.store.SearchByKeyword(ctx, tsQuery, domain.KeywordSearch{Locale: locale})
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("search by keyword: %w", err))
		}
	}

	var extraVector map[string]float64
	if missing := missingChunkIDs(vectorHits, keywordHits); len(missing) > 0 {
		extraVector, err = r.store.VectorScores(ctx, queryVector, missing)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, op, fmt.Errorf("score keyword-only chunks: %w", err))
		}
	}

	fused := fuseHybrid(vectorHits, keywordHits, extraVector, cfg.VectorWeight, cfg.KeywordWeight)
	fused = trimCandidates(filterByScore(fused, cfg.SimilarityThreshold), cfg.TopK)

	if len(fused) == 0 {
		r.logNearestMisses(ctx, queryVector, hybridDiagnosticLimit, cfg.SimilarityThreshold, domain.SearchMethodHybrid)
	}
	return fused, nil
}

// logNearestMisses reports the best similarities ignoring the threshold. It never changes the result.
func (r *Retriever) logNearestMisses(ctx context.Context, vector []float32, limit int, threshold float64, method domain.SearchMethod) {
	scores, err := r.store.TopSimilarities(ctx, vector, limit)
	if err != nil {
		slog.Warn("retrieval_diagnostic_failed", "search_method", method, "error", err)
		return
	}
	slog.Info("retrieval_no_match",
		"search_method", method,
		"threshold", threshold,
		"top_similarities", scores,
	)
}
