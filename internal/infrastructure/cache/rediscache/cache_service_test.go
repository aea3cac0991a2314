package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/usecase"
	"github.com/achinchen/articles-assistant/internal/infrastructure/cache/rediscache"
)

func setupCacheService(t *testing.T) (*miniredis.Miniredis, *usecase.CacheService) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := rediscache.Open(context.Background(), rediscache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, usecase.NewCacheService(store, domain.DefaultCacheConfig())
}

func highQualityResponse() *domain.QueryResponse {
	return &domain.QueryResponse{
		Answer: "Raise ef_search for recall [1].",
		Sources: []domain.Source{
			{ID: 1, ArticleSlug: "hnsw-tuning", Similarity: 0.84},
			{ID: 2, ArticleSlug: "pgvector-intro", Similarity: 0.80},
		},
		Metadata: domain.QueryMetadata{QueryLocale: domain.LocaleEnglish, SearchMethod: domain.SearchMethodVector},
	}
}

func TestCacheService_RoundTripThroughRedis(t *testing.T) {
	mr, cache := setupCacheService(t)
	ctx := context.Background()
	query := "How do I tune HNSW indexes for pgvector?"

	assert.Nil(t, cache.Get(ctx, query, domain.LocaleEnglish, false, nil))

	ttl := cache.Set(ctx, query, domain.LocaleEnglish, false, nil, highQualityResponse())
	assert.Equal(t, 2*time.Hour, ttl)
	assert.Equal(t, 2*time.Hour, mr.TTL(cache.Key(query, domain.LocaleEnglish, false, nil)))

	cached := cache.Get(ctx, "  how do i TUNE hnsw indexes for pgvector? ", domain.LocaleEnglish, false, nil)
	require.NotNil(t, cached, "normalized query should hit the same key")
	assert.Equal(t, "Raise ef_search for recall [1].", cached.Answer)
	assert.True(t, cached.Metadata.Cached)
	assert.Equal(t, 7200, cached.Metadata.CacheTTL)
	require.NotNil(t, cached.Metadata.CachedAt)

	assert.Nil(t, cache.Get(ctx, query, domain.LocaleEnglish, true, nil), "hybrid mode uses a different key")

	m, err := cache.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(2), m.Misses)
	assert.InDelta(t, 1.0/3.0, m.HitRate, 1e-9)
}

func TestCacheService_EntriesExpire(t *testing.T) {
	mr, cache := setupCacheService(t)
	ctx := context.Background()
	query := "How do I tune HNSW indexes for pgvector?"

	cache.Set(ctx, query, domain.LocaleEnglish, false, nil, highQualityResponse())
	mr.FastForward(2*time.Hour + time.Second)

	assert.Nil(t, cache.Get(ctx, query, domain.LocaleEnglish, false, nil))
}

func TestCacheService_ContentUpdateKeepsCounters(t *testing.T) {
	mr, cache := setupCacheService(t)
	ctx := context.Background()

	cache.Set(ctx, "pgvector index types", domain.LocaleEnglish, false, nil, highQualityResponse())
	cache.Set(ctx, "向量索引", domain.LocaleChinese, true, nil, highQualityResponse())
	cache.Get(ctx, "pgvector index types", domain.LocaleEnglish, false, nil)

	removed, err := cache.InvalidateOnContentUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"articles-assistant:metrics"}, mr.Keys())

	m, err := cache.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Hits)
}

func TestCacheService_InvalidatePatternByLocale(t *testing.T) {
	mr, cache := setupCacheService(t)
	ctx := context.Background()

	cache.Set(ctx, "pgvector index types", domain.LocaleEnglish, false, nil, highQualityResponse())
	cache.Set(ctx, "向量索引", domain.LocaleChinese, false, nil, highQualityResponse())

	removed, err := cache.InvalidatePattern(ctx, "query:zh:*")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, mr.Exists(cache.Key("pgvector index types", domain.LocaleEnglish, false, nil)))
}

func TestCacheService_FailsOpenWhenRedisIsGone(t *testing.T) {
	mr, cache := setupCacheService(t)
	ctx := context.Background()
	mr.Close()

	assert.Nil(t, cache.Get(ctx, "pgvector index types", domain.LocaleEnglish, false, nil))
	assert.Zero(t, cache.Set(ctx, "pgvector index types", domain.LocaleEnglish, false, nil, highQualityResponse()))
}
