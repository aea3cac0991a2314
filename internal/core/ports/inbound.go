package ports

import (
	"context"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// QueryService is the inbound contract for answering questions.
type QueryService interface {
	Query(ctx context.Context, input domain.QueryInput) (*domain.QueryResponse, error)
}

// FeedbackRecorder attaches a user rating to a previously answered query.
type FeedbackRecorder interface {
	Feedback(ctx context.Context, query string, rating int) (bool, error)
}

// CacheAdmin exposes cache inspection and invalidation.
type CacheAdmin interface {
	Metrics(ctx context.Context) (domain.CacheMetrics, error)
	ResetMetrics(ctx context.Context) error
	Info(ctx context.Context) (map[string]string, error)
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
	Clear(ctx context.Context) (int, error)
	InvalidateOnContentUpdate(ctx context.Context) (int, error)
	RunMaintenance(ctx context.Context) (domain.MaintenanceReport, error)
}

// ThresholdAdmin exposes the adaptive threshold state.
type ThresholdAdmin interface {
	Stats() domain.PerformanceStats
	Config() domain.ThresholdConfig
	UpdateConfig(cfg domain.ThresholdConfig) error
	ClearHistory()
	ExportHistory() []domain.QueryPerformance
}

// EnhancementAdmin exposes query enhancement tuning and a dry run.
type EnhancementAdmin interface {
	Config() domain.EnhancementConfig
	UpdateConfig(cfg domain.EnhancementConfig) error
	ShouldEnhance(query string) bool
	Enhance(ctx context.Context, query string) domain.QueryEnhancement
}
