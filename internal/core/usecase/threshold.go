package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

const (
	shortQueryChars  = 10
	mediumQueryChars = 30
	longQueryChars   = 100

	hybridThresholdDiscount = 0.05
	localeThresholdDiscount = 0.02

	adaptiveWindow       = 24 * time.Hour
	adaptiveMinSamples   = 10
	similarQueryJaccard  = 0.7
	expectedResultCount  = 5.0
	neutralRating        = 0.5
	poorPerformanceScore = 0.4
	goodPerformanceScore = 0.8
)

// ThresholdOptimizer picks a per-query similarity cutoff and learns from recent outcomes.
// History lives in memory only and is lost on restart.
type ThresholdOptimizer struct {
	mu      sync.RWMutex
	cfg     domain.ThresholdConfig
	history *performanceRing
	now     func() time.Time
}

func NewThresholdOptimizer(cfg domain.ThresholdConfig) *ThresholdOptimizer {
	return &ThresholdOptimizer{
		cfg:     cfg,
		history: newPerformanceRing(cfg.HistorySize),
		now:     time.Now,
	}
}

// CalculateOptimalThreshold applies length, mode, locale and adaptive adjustments to the base threshold.
func (o *ThresholdOptimizer) CalculateOptimalThreshold(query string, queryLength int, locale domain.Locale, useHybrid bool) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()

	cfg := o.cfg
	if !cfg.Enabled {
		return cfg.BaseThreshold
	}

	threshold := cfg.BaseThreshold

	switch {
	case queryLength < shortQueryChars:
		threshold -= cfg.QueryLengthFactor * 2
	case queryLength < mediumQueryChars:
		threshold -= cfg.QueryLengthFactor
	case queryLength > longQueryChars:
		threshold += cfg.QueryLengthFactor
	}

	if useHybrid {
		threshold -= hybridThresholdDiscount
	}
	if locale != "" && locale != domain.DefaultLocale {
		threshold -= localeThresholdDiscount
	}

	if cfg.AdaptiveEnabled {
		threshold += o.adaptiveAdjustment(query)
	}

	return clamp(threshold, cfg.MinThreshold, cfg.MaxThreshold)
}

func (o *ThresholdOptimizer) adaptiveAdjustment(query string) float64 {
	cutoff := o.now().Add(-adaptiveWindow)
	recent := make([]domain.QueryPerformance, 0, o.history.len())
	for _, p := range o.history.snapshot() {
		if p.Timestamp.After(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) < adaptiveMinSamples {
		return 0
	}

	words := toWordSet(query)
	var total float64
	similar := 0
	for _, p := range recent {
		if jaccardSimilarity(words, toWordSet(p.Query)) <= similarQueryJaccard {
			continue
		}
		total += performanceScore(p)
		similar++
	}
	if similar == 0 {
		return 0
	}

	mean := total / float64(similar)
	switch {
	case mean < poorPerformanceScore:
		return -o.cfg.LearningRate
	case mean > goodPerformanceScore:
		return o.cfg.LearningRate * 0.5
	}
	return 0
}

func performanceScore(p domain.QueryPerformance) float64 {
	resultScore := math.Min(float64(p.ResultCount)/expectedResultCount, 1)
	rating := neutralRating
	if p.UserRating != nil {
		rating = *p.UserRating
	}
	return resultScore*0.6 + rating*0.4
}

// RecordPerformance stores one query outcome. It is a no-op when adaptive learning is off.
func (o *ThresholdOptimizer) RecordPerformance(query string, threshold float64, chunks []domain.RetrievedChunk, userRating *float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.cfg.AdaptiveEnabled {
		return
	}

	record := domain.QueryPerformance{
		Query:       query,
		Threshold:   threshold,
		ResultCount: len(chunks),
		UserRating:  userRating,
		Timestamp:   o.now(),
	}
	if len(chunks) > 0 {
		record.MaxSimilarity = math.Inf(-1)
		record.MinSimilarity = math.Inf(1)
		var sum float64
		for _, chunk := range chunks {
			sum += chunk.Similarity
			record.MaxSimilarity = math.Max(record.MaxSimilarity, chunk.Similarity)
			record.MinSimilarity = math.Min(record.MinSimilarity, chunk.Similarity)
		}
		record.AvgSimilarity = sum / float64(len(chunks))
	}
	o.history.push(record)
}

// RecordRating attaches a rating to the latest record of the same query.
func (o *ThresholdOptimizer) RecordRating(query string, rating float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	normalized := NormalizeQuery(query)
	return o.history.updateLatest(func(p *domain.QueryPerformance) bool {
		if NormalizeQuery(p.Query) != normalized {
			return false
		}
		r := rating
		p.UserRating = &r
		return true
	})
}

func (o *ThresholdOptimizer) Stats() domain.PerformanceStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	records := o.history.snapshot()
	stats := domain.PerformanceStats{TotalQueries: len(records)}
	if len(records) == 0 {
		return stats
	}

	var results, similarity, threshold, rating float64
	for _, p := range records {
		results += float64(p.ResultCount)
		similarity += p.AvgSimilarity
		threshold += p.Threshold
		if p.UserRating != nil {
			stats.RatedQueries++
			rating += *p.UserRating
		}
	}
	n := float64(len(records))
	stats.AvgResultCount = results / n
	stats.AvgSimilarity = similarity / n
	stats.AvgThreshold = threshold / n
	if stats.RatedQueries > 0 {
		stats.AvgRating = rating / float64(stats.RatedQueries)
	}
	return stats
}

func (o *ThresholdOptimizer) Config() domain.ThresholdConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

func (o *ThresholdOptimizer) UpdateConfig(cfg domain.ThresholdConfig) error {
	if cfg.MinThreshold < 0 || cfg.MaxThreshold > 1 || cfg.MinThreshold > cfg.MaxThreshold {
		return domain.WrapError(domain.ErrInvalidInput, "update threshold config",
			fmt.Errorf("thresholds must satisfy 0 <= min (%.2f) <= max (%.2f) <= 1", cfg.MinThreshold, cfg.MaxThreshold))
	}
	if cfg.HistorySize <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "update threshold config", fmt.Errorf("history size must be positive"))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if cfg.HistorySize != o.cfg.HistorySize {
		o.history = o.history.resized(cfg.HistorySize)
	}
	o.cfg = cfg
	return nil
}

func (o *ThresholdOptimizer) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = newPerformanceRing(o.cfg.HistorySize)
}

// ExportHistory returns a copy of the retained records, oldest first.
func (o *ThresholdOptimizer) ExportHistory() []domain.QueryPerformance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.history.snapshot()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// performanceRing is a fixed-capacity circular buffer; once full, each push overwrites the oldest record.
type performanceRing struct {
	items []domain.QueryPerformance
	next  int
	full  bool
}

func newPerformanceRing(capacity int) *performanceRing {
	if capacity <= 0 {
		capacity = domain.DefaultThresholdConfig().HistorySize
	}
	return &performanceRing{items: make([]domain.QueryPerformance, capacity)}
}

func (r *performanceRing) push(p domain.QueryPerformance) {
	r.items[r.next] = p
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *performanceRing) len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

func (r *performanceRing) snapshot() []domain.QueryPerformance {
	n := r.len()
	out := make([]domain.QueryPerformance, 0, n)
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < n; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// updateLatest walks newest to oldest and stops at the first record fn accepts.
func (r *performanceRing) updateLatest(fn func(*domain.QueryPerformance) bool) bool {
	n := r.len()
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		if fn(&r.items[idx]) {
			return true
		}
	}
	return false
}

func (r *performanceRing) resized(capacity int) *performanceRing {
	out := newPerformanceRing(capacity)
	records := r.snapshot()
	if len(records) > capacity {
		records = records[len(records)-capacity:]
	}
	for _, p := range records {
		out.push(p)
	}
	return out
}
