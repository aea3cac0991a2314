package httpadapter

import (
	"context"
	"errors"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

type queryFake struct {
	resp *domain.QueryResponse
	err  error
	got  domain.QueryInput
}

func (f *queryFake) Query(_ context.Context, input domain.QueryInput) (*domain.QueryResponse, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type feedbackFake struct {
	query  string
	rating int
}

func (f *feedbackFake) Feedback(_ context.Context, query string, rating int) (bool, error) {
	if rating != 1 && rating != -1 {
		return false, domain.WrapError(domain.ErrInvalidInput, "feedback", errors.New("rating must be 1 or -1"))
	}
	f.query, f.rating = query, rating
	return true, nil
}

type cacheAdminFake struct {
	pattern string
	err     error
}

func (f *cacheAdminFake) Metrics(context.Context) (domain.CacheMetrics, error) {
	return domain.CacheMetrics{Hits: 3, Misses: 1, HitRate: 0.75}, f.err
}
func (f *cacheAdminFake) ResetMetrics(context.Context) error { return f.err }
func (f *cacheAdminFake) Info(context.Context) (map[string]string, error) {
	return map[string]string{"used_memory_human": "1.2M"}, f.err
}
func (f *cacheAdminFake) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	f.pattern = pattern
	return 4, f.err
}
func (f *cacheAdminFake) Clear(context.Context) (int, error)                     { return 9, f.err }
func (f *cacheAdminFake) InvalidateOnContentUpdate(context.Context) (int, error) { return 2, f.err }
func (f *cacheAdminFake) RunMaintenance(context.Context) (domain.MaintenanceReport, error) {
	return domain.MaintenanceReport{EvictedForSize: 5}, f.err
}

type thresholdAdminFake struct {
	cfg     domain.ThresholdConfig
	cleared bool
}

func (f *thresholdAdminFake) Stats() domain.PerformanceStats { return domain.PerformanceStats{TotalQueries: 2} }
func (f *thresholdAdminFake) Config() domain.ThresholdConfig { return f.cfg }
func (f *thresholdAdminFake) UpdateConfig(cfg domain.ThresholdConfig) error {
	if cfg.MinThreshold > cfg.MaxThreshold {
		return domain.WrapError(domain.ErrInvalidInput, "update threshold config", errors.New("min above max"))
	}
	f.cfg = cfg
	return nil
}
func (f *thresholdAdminFake) ClearHistory() { f.cleared = true }
func (f *thresholdAdminFake) ExportHistory() []domain.QueryPerformance {
	return []domain.QueryPerformance{{Query: "redis", ResultCount: 3}}
}

type enhancementAdminFake struct {
	cfg domain.EnhancementConfig
}

func (f *enhancementAdminFake) Config() domain.EnhancementConfig { return f.cfg }
func (f *enhancementAdminFake) UpdateConfig(cfg domain.EnhancementConfig) error {
	f.cfg = cfg
	return nil
}
func (f *enhancementAdminFake) ShouldEnhance(query string) bool { return len(query) < 16 }
func (f *enhancementAdminFake) Enhance(_ context.Context, query string) domain.QueryEnhancement {
	return domain.QueryEnhancement{
		OriginalQuery: query,
		EnhancedQuery: query + " tutorial",
		Expansions:    []string{query + " guide"},
		Synonyms:      []string{},
		RelatedTerms:  []string{},
		Confidence:    0.8,
	}
}

type pingFake struct{ err error }

func (p pingFake) Ping(context.Context) error { return p.err }
