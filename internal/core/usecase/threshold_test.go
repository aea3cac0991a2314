package usecase

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

func newTestOptimizer(cfg domain.ThresholdConfig, now time.Time) *ThresholdOptimizer {
	o := NewThresholdOptimizer(cfg)
	o.now = func() time.Time { return now }
	return o
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestThresholdLengthAdjustments(t *testing.T) {
	o := newTestOptimizer(domain.DefaultThresholdConfig(), time.Now())

	short := o.CalculateOptimalThreshold("AI", 2, domain.LocaleEnglish, false)
	medium := o.CalculateOptimalThreshold("q", 20, domain.LocaleEnglish, false)
	normal := o.CalculateOptimalThreshold("q", 60, domain.LocaleEnglish, false)
	long := o.CalculateOptimalThreshold("q", 120, domain.LocaleEnglish, false)

	if !approxEqual(short, 0.2) {
		t.Fatalf("short query: expected 0.2 (clamped from 0.1), got %f", short)
	}
	if !approxEqual(medium, 0.2) {
		t.Fatalf("medium query: expected 0.2, got %f", medium)
	}
	if !approxEqual(normal, 0.3) {
		t.Fatalf("normal query: expected base 0.3, got %f", normal)
	}
	if !approxEqual(long, 0.4) {
		t.Fatalf("long query: expected 0.4, got %f", long)
	}
}

func TestThresholdMonotonicInQueryLength(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.MinThreshold = 0
	o := newTestOptimizer(cfg, time.Now())

	short := o.CalculateOptimalThreshold("AI", 2, domain.LocaleEnglish, false)
	medium := o.CalculateOptimalThreshold("what is react", 13, domain.LocaleEnglish, false)
	long := o.CalculateOptimalThreshold(strings.Repeat("x", 100), 100, domain.LocaleEnglish, false)

	if !(short < medium && medium <= long) {
		t.Fatalf("expected short < medium <= long, got %f %f %f", short, medium, long)
	}
}

func TestThresholdHybridAndLocaleDiscounts(t *testing.T) {
	o := newTestOptimizer(domain.DefaultThresholdConfig(), time.Now())

	vector := o.CalculateOptimalThreshold("q", 60, domain.LocaleEnglish, false)
	hybrid := o.CalculateOptimalThreshold("q", 60, domain.LocaleEnglish, true)
	zh := o.CalculateOptimalThreshold("q", 60, domain.LocaleChinese, false)

	if !approxEqual(vector-hybrid, 0.05) {
		t.Fatalf("expected hybrid discount 0.05, got %f", vector-hybrid)
	}
	if !approxEqual(vector-zh, 0.02) {
		t.Fatalf("expected locale discount 0.02, got %f", vector-zh)
	}
}

func TestThresholdClampedForExtremeConfig(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.QueryLengthFactor = 5
	o := newTestOptimizer(cfg, time.Now())

	for _, length := range []int{0, 5, 25, 50, 500} {
		for _, hybrid := range []bool{false, true} {
			got := o.CalculateOptimalThreshold("q", length, domain.LocaleChinese, hybrid)
			if got < cfg.MinThreshold || got > cfg.MaxThreshold {
				t.Fatalf("threshold %f outside [%f, %f]", got, cfg.MinThreshold, cfg.MaxThreshold)
			}
		}
	}
}

func TestThresholdDisabledReturnsBase(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.Enabled = false
	cfg.BaseThreshold = 0.95
	o := newTestOptimizer(cfg, time.Now())

	if got := o.CalculateOptimalThreshold("AI", 2, domain.LocaleChinese, true); got != 0.95 {
		t.Fatalf("expected unmodified base threshold, got %f", got)
	}
}

func TestThresholdAdaptiveLowersForPoorResults(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOptimizer(domain.DefaultThresholdConfig(), now)

	for i := 0; i < 10; i++ {
		o.RecordPerformance("react hooks tutorial", 0.3, nil, floatPtr(0))
	}

	got := o.CalculateOptimalThreshold("react hooks tutorial", 60, domain.LocaleEnglish, false)
	if !approxEqual(got, 0.2) {
		t.Fatalf("expected 0.3 - 0.1 = 0.2, got %f", got)
	}
}

func TestThresholdAdaptiveRaisesForStrongResults(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOptimizer(domain.DefaultThresholdConfig(), now)

	five := []domain.RetrievedChunk{
		chunk("c1", "a", 0.9), chunk("c2", "b", 0.9), chunk("c3", "c", 0.9), chunk("c4", "d", 0.9), chunk("c5", "e", 0.9),
	}
	for i := 0; i < 10; i++ {
		o.RecordPerformance("react hooks tutorial", 0.3, five, floatPtr(1))
	}

	got := o.CalculateOptimalThreshold("React Hooks Tutorial", 60, domain.LocaleEnglish, false)
	if !approxEqual(got, 0.35) {
		t.Fatalf("expected 0.3 + 0.05 = 0.35, got %f", got)
	}
}

func TestThresholdAdaptiveIgnoresStaleAndDissimilarRecords(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOptimizer(domain.DefaultThresholdConfig(), now.Add(-48*time.Hour))
	for i := 0; i < 10; i++ {
		o.RecordPerformance("react hooks tutorial", 0.3, nil, floatPtr(0))
	}
	o.now = func() time.Time { return now }

	if got := o.CalculateOptimalThreshold("react hooks tutorial", 60, domain.LocaleEnglish, false); !approxEqual(got, 0.3) {
		t.Fatalf("stale records must not adjust threshold, got %f", got)
	}

	for i := 0; i < 10; i++ {
		o.RecordPerformance("kubernetes operators", 0.3, nil, floatPtr(0))
	}
	if got := o.CalculateOptimalThreshold("react hooks tutorial", 60, domain.LocaleEnglish, false); !approxEqual(got, 0.3) {
		t.Fatalf("dissimilar records must not adjust threshold, got %f", got)
	}
}

func TestThresholdRecordPerformanceNoOpWhenAdaptiveDisabled(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.AdaptiveEnabled = false
	o := newTestOptimizer(cfg, time.Now())

	o.RecordPerformance("q", 0.3, []domain.RetrievedChunk{chunk("c1", "a", 0.5)}, nil)
	if n := len(o.ExportHistory()); n != 0 {
		t.Fatalf("expected no history, got %d records", n)
	}
}

func TestThresholdHistoryKeepsMostRecent(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.HistorySize = 3
	o := newTestOptimizer(cfg, time.Now())

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		o.RecordPerformance(q, 0.3, nil, nil)
	}

	history := o.ExportHistory()
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	if history[0].Query != "q3" || history[2].Query != "q5" {
		t.Fatalf("expected q3..q5 oldest first, got %s..%s", history[0].Query, history[2].Query)
	}
}

func TestThresholdRecordPerformanceSimilarityStats(t *testing.T) {
	o := newTestOptimizer(domain.DefaultThresholdConfig(), time.Now())

	o.RecordPerformance("q", 0.3, []domain.RetrievedChunk{chunk("c1", "a", 0.4), chunk("c2", "b", 0.8)}, nil)
	p := o.ExportHistory()[0]
	if !approxEqual(p.AvgSimilarity, 0.6) || p.MaxSimilarity != 0.8 || p.MinSimilarity != 0.4 {
		t.Fatalf("unexpected similarity stats %+v", p)
	}
}

func TestThresholdRecordRatingAndStats(t *testing.T) {
	o := newTestOptimizer(domain.DefaultThresholdConfig(), time.Now())
	o.RecordPerformance("first query", 0.2, []domain.RetrievedChunk{chunk("c1", "a", 0.5)}, nil)
	o.RecordPerformance("second query", 0.4, nil, nil)

	if !o.RecordRating("  First   QUERY ", 1) {
		t.Fatalf("expected rating to match normalized query")
	}
	if o.RecordRating("unknown", 1) {
		t.Fatalf("expected no match for unknown query")
	}

	stats := o.Stats()
	if stats.TotalQueries != 2 || stats.RatedQueries != 1 || stats.AvgRating != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !approxEqual(stats.AvgThreshold, 0.3) || !approxEqual(stats.AvgResultCount, 0.5) {
		t.Fatalf("unexpected averages %+v", stats)
	}
}

func TestThresholdUpdateConfigResizesHistory(t *testing.T) {
	o := newTestOptimizer(domain.DefaultThresholdConfig(), time.Now())
	for _, q := range []string{"a", "b", "c", "d"} {
		o.RecordPerformance(q, 0.3, nil, nil)
	}

	cfg := o.Config()
	cfg.HistorySize = 2
	if err := o.UpdateConfig(cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}
	history := o.ExportHistory()
	if len(history) != 2 || history[0].Query != "c" || history[1].Query != "d" {
		t.Fatalf("expected newest two records kept, got %+v", history)
	}

	cfg.MinThreshold = 0.9
	if err := o.UpdateConfig(cfg); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for min > max, got %v", err)
	}

	o.ClearHistory()
	if len(o.ExportHistory()) != 0 {
		t.Fatalf("expected history cleared")
	}
}
