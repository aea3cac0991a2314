package ports

import (
	"context"
	"time"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// Embedder turns text into vectors via the embedding service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer sends one system+user prompt pair to the language model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// ChunkStore searches article chunks by vector distance and full-text rank.
type ChunkStore interface {
	SearchByVector(ctx context.Context, vector []float32, search domain.VectorSearch) ([]domain.RetrievedChunk, error)
	SearchByKeyword(ctx context.Context, tsQuery string, search domain.KeywordSearch) ([]domain.RetrievedChunk, error)
	// VectorScores returns cosine similarity for the given chunk ids; chunks without an embedding are absent.
	VectorScores(ctx context.Context, vector []float32, chunkIDs []string) (map[string]float64, error)
	TopSimilarities(ctx context.Context, vector []float32, limit int) ([]float64, error)
}

// CacheStore is a key-value store with TTLs and glob key enumeration.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	HashIncrement(ctx context.Context, key, field string, delta int64) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	MemoryInfo(ctx context.Context) (map[string]string, error)
}

// TokenCounter estimates how many model tokens a text occupies.
type TokenCounter interface {
	CountTokens(text string) int
}

// ContentEvents delivers "articles changed" notifications from ingestion.
type ContentEvents interface {
	PublishContentUpdated(ctx context.Context, articleID string) error
	SubscribeContentUpdated(ctx context.Context, handler func(context.Context, string) error) error
}

// CorpusReader reports indexed corpus totals.
type CorpusReader interface {
	CorpusStats(ctx context.Context) (domain.CorpusStats, error)
}
