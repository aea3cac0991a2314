package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
)

const (
	defaultCachePrefix = "articles-assistant"
	allLocalesScope    = "all"

	metricHits   = "hits"
	metricMisses = "misses"
	metricErrors = "errors"

	longQueryCacheChars  = 50
	shortQueryCacheChars = 10

	highQualitySimilarity = 0.7
	lowQualitySimilarity  = 0.5

	minRequestsForHitRate = 10
	evictFraction         = 0.25
	bytesPerMB            = 1024 * 1024
)

// CacheService caches full query responses with a TTL derived from query length,
// answer quality and search mode. Store failures never reach the caller.
type CacheService struct {
	store  ports.CacheStore
	prefix string
	now    func() time.Time

	mu  sync.RWMutex
	cfg domain.CacheConfig
}

func NewCacheService(store ports.CacheStore, cfg domain.CacheConfig) *CacheService {
	return &CacheService{
		store:  store,
		prefix: defaultCachePrefix,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Key derives the cache key; queries that differ only in case or whitespace share a key.
// locale is the retrieval filter; an unfiltered query is keyed as "all".
func (s *CacheService) Key(query string, locale domain.Locale, useHybrid bool, overrides *domain.QueryConfigOverrides) string {
	scope := string(locale)
	if scope == "" {
		scope = allLocalesScope
	}
	return fmt.Sprintf("%s:query:%s:%s:%s:%s",
		s.prefix,
		scope,
		domain.SearchMethodFor(useHybrid),
		configHash(overrides),
		md5Hex(NormalizeQuery(query)),
	)
}

func (s *CacheService) metricsKey() string {
	return s.prefix + ":metrics"
}

// Get returns the cached response, or nil on a miss or any store error.
func (s *CacheService) Get(ctx context.Context, query string, locale domain.Locale, useHybrid bool, overrides *domain.QueryConfigOverrides) *domain.QueryResponse {
	key := s.Key(query, locale, useHybrid, overrides)

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_get_failed", "key", key, "error", err)
		s.incrementMetric(ctx, metricErrors)
		return nil
	}
	if !ok {
		s.incrementMetric(ctx, metricMisses)
		return nil
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.Warn("cache_decode_failed", "key", key, "error", err)
		s.incrementMetric(ctx, metricErrors)
		return nil
	}
	s.incrementMetric(ctx, metricHits)
	return &resp
}

// Set stores resp under the derived key and returns the TTL used. Failures are logged and counted.
func (s *CacheService) Set(ctx context.Context, query string, locale domain.Locale, useHybrid bool, overrides *domain.QueryConfigOverrides, resp *domain.QueryResponse) time.Duration {
	if resp == nil {
		return 0
	}
	key := s.Key(query, locale, useHybrid, overrides)
	ttl := s.CalculateTTL(query, resp.Sources, useHybrid)

	cachedAt := s.now().UTC()
	payload := *resp
	payload.Metadata.Cached = true
	payload.Metadata.CachedAt = &cachedAt
	payload.Metadata.CacheTTL = int(ttl / time.Second)

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("cache_encode_failed", "key", key, "error", err)
		s.incrementMetric(ctx, metricErrors)
		return 0
	}
	if err := s.store.SetWithTTL(ctx, key, string(body), ttl); err != nil {
		slog.Warn("cache_set_failed", "key", key, "error", err)
		s.incrementMetric(ctx, metricErrors)
		return 0
	}
	return ttl
}

// CalculateTTL applies the length, quality and search-mode rules in that order, then clamps.
func (s *CacheService) CalculateTTL(query string, sources []domain.Source, useHybrid bool) time.Duration {
	cfg := s.Config().TTL
	ttl := cfg.Default

	switch length := runeLen(query); {
	case length < shortQueryCacheChars:
		ttl = min(ttl, cfg.ShortQuery)
	case length >= longQueryCacheChars:
		ttl = max(ttl, cfg.LongQuery)
	default:
		ttl = cfg.MediumQuery
	}

	if len(sources) > 0 {
		var sum float64
		for _, src := range sources {
			sum += src.Similarity
		}
		avg := sum / float64(len(sources))
		switch {
		case avg > highQualitySimilarity:
			ttl = max(ttl, cfg.HighQuality)
		case avg < lowQualitySimilarity:
			ttl = min(ttl, cfg.LowQuality)
		default:
			ttl = cfg.MediumQuality
		}
	}

	if useHybrid {
		ttl = max(ttl, cfg.HybridSearch)
	} else {
		ttl = max(ttl, cfg.VectorSearch)
	}

	ttl = max(cfg.Min, min(cfg.Max, ttl))
	return time.Duration(ttl) * time.Second
}

// InvalidatePattern deletes every key matching prefix:pattern.
func (s *CacheService) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	return s.deleteMatching(ctx, s.prefix+":"+pattern)
}

// Clear deletes every key under the service prefix, counters included.
func (s *CacheService) Clear(ctx context.Context) (int, error) {
	return s.deleteMatching(ctx, s.prefix+":*")
}

// InvalidateOnContentUpdate drops cached answers after articles change.
func (s *CacheService) InvalidateOnContentUpdate(ctx context.Context) (int, error) {
	if !s.Config().Invalidation.OnContentUpdate {
		return 0, nil
	}
	n, err := s.InvalidatePattern(ctx, "query:*")
	if err != nil {
		return 0, err
	}
	slog.Info("cache_invalidated_on_content_update", "deleted", n)
	return n, nil
}

func (s *CacheService) deleteMatching(ctx context.Context, pattern string) (int, error) {
	keys, err := s.store.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("list cache keys %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := s.store.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete cache keys %q: %w", pattern, err)
	}
	return int(deleted), nil
}

func (s *CacheService) Metrics(ctx context.Context) (domain.CacheMetrics, error) {
	raw, err := s.store.HashGetAll(ctx, s.metricsKey())
	if err != nil {
		return domain.CacheMetrics{}, fmt.Errorf("read cache metrics: %w", err)
	}
	m := domain.CacheMetrics{
		Hits:   parseCounter(raw[metricHits]),
		Misses: parseCounter(raw[metricMisses]),
		Errors: parseCounter(raw[metricErrors]),
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m, nil
}

func (s *CacheService) ResetMetrics(ctx context.Context) error {
	if _, err := s.store.Delete(ctx, s.metricsKey()); err != nil {
		return fmt.Errorf("reset cache metrics: %w", err)
	}
	return nil
}

func (s *CacheService) Info(ctx context.Context) (map[string]string, error) {
	info, err := s.store.MemoryInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cache info: %w", err)
	}
	return info, nil
}

// CheckLowHitRate clears the cache and its counters when the hit rate has collapsed.
func (s *CacheService) CheckLowHitRate(ctx context.Context) (bool, float64, error) {
	m, err := s.Metrics(ctx)
	if err != nil {
		return false, 0, err
	}
	threshold := s.Config().Invalidation.LowHitRate
	if m.Hits+m.Misses < minRequestsForHitRate || m.HitRate >= threshold {
		return false, m.HitRate, nil
	}

	slog.Warn("cache_low_hit_rate", "hit_rate", m.HitRate, "threshold", threshold)
	if _, err := s.Clear(ctx); err != nil {
		return false, m.HitRate, err
	}
	if err := s.ResetMetrics(ctx); err != nil {
		return true, m.HitRate, err
	}
	return true, m.HitRate, nil
}

// CheckSize evicts the quarter of cached answers closest to expiry when memory use is over budget.
func (s *CacheService) CheckSize(ctx context.Context) (int, float64, error) {
	info, err := s.store.MemoryInfo(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read cache memory: %w", err)
	}
	usedMB := float64(parseCounter(info["used_memory"])) / bytesPerMB
	limit := s.Config().Invalidation.SizeExceededMB
	if usedMB <= limit {
		return 0, usedMB, nil
	}

	slog.Warn("cache_size_exceeded", "used_memory_mb", usedMB, "limit_mb", limit)
	evicted, err := s.evictSoonestExpiring(ctx)
	return evicted, usedMB, err
}

func (s *CacheService) evictSoonestExpiring(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, s.prefix+":query:*")
	if err != nil {
		return 0, fmt.Errorf("list cached queries: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	type keyTTL struct {
		key string
		ttl time.Duration
	}
	entries := make([]keyTTL, 0, len(keys))
	for _, key := range keys {
		ttl, err := s.store.TTL(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("read ttl for %s: %w", key, err)
		}
		entries = append(entries, keyTTL{key: key, ttl: ttl})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ttl < entries[j].ttl })

	n := int(math.Ceil(float64(len(entries)) * evictFraction))
	victims := make([]string, 0, n)
	for _, e := range entries[:n] {
		victims = append(victims, e.key)
	}
	deleted, err := s.store.Delete(ctx, victims...)
	if err != nil {
		return 0, fmt.Errorf("evict cached queries: %w", err)
	}
	slog.Info("cache_evicted_soonest_expiring", "deleted", deleted, "candidates", len(entries))
	return int(deleted), nil
}

// RunMaintenance runs the hit-rate and size checks concurrently.
func (s *CacheService) RunMaintenance(ctx context.Context) (domain.MaintenanceReport, error) {
	var report domain.MaintenanceReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cleared, hitRate, err := s.CheckLowHitRate(gctx)
		report.ClearedForLowHitRate = cleared
		report.HitRate = hitRate
		return err
	})
	g.Go(func() error {
		evicted, usedMB, err := s.CheckSize(gctx)
		report.EvictedForSize = evicted
		report.UsedMemoryMB = usedMB
		return err
	})
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("cache maintenance: %w", err)
	}
	return report, nil
}

func (s *CacheService) Config() domain.CacheConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *CacheService) UpdateConfig(cfg domain.CacheConfig) error {
	if cfg.TTL.Min <= 0 || cfg.TTL.Max < cfg.TTL.Min {
		return domain.WrapError(domain.ErrInvalidInput, "update cache config",
			fmt.Errorf("ttl bounds must satisfy 0 < min (%d) <= max (%d)", cfg.TTL.Min, cfg.TTL.Max))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *CacheService) incrementMetric(ctx context.Context, field string) {
	if err := s.store.HashIncrement(ctx, s.metricsKey(), field, 1); err != nil {
		slog.Warn("cache_metric_increment_failed", "field", field, "error", err)
	}
}

func configHash(overrides *domain.QueryConfigOverrides) string {
	if overrides == nil || *overrides == (domain.QueryConfigOverrides{}) {
		return "default"
	}
	body, err := json.Marshal(overrides)
	if err != nil {
		return "default"
	}
	return md5Hex(string(body))[:8]
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func parseCounter(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
