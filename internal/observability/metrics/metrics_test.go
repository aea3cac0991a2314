package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

func TestMiddlewareCountsRequestsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/v1/cache/pattern/a*", "/v1/cache/pattern/b*"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, path, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodDelete, "/v1/cache/pattern/{pattern}", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests on normalized path, got %v", got)
	}
}

func TestRecordQuerySkipsPipelineSeriesForCachedAnswers(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordQuery(&domain.QueryResponse{Metadata: domain.QueryMetadata{
		SearchMethod:    domain.SearchMethodHybrid,
		Model:           "gpt-4o-mini",
		ChunksRetrieved: 4,
		ChunksUsed:      3,
		Threshold:       0.25,
		TokensUsed:      domain.TokenUsage{Context: 900, Prompt: 1100, Completion: 200, Total: 1300},
		QueryEnhancement: &domain.QueryEnhancement{Applied: true},
	}}, 800*time.Millisecond)
	m.RecordQuery(&domain.QueryResponse{Metadata: domain.QueryMetadata{
		SearchMethod: domain.SearchMethodHybrid,
		Cached:       true,
	}}, 2*time.Millisecond)

	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues("hybrid", "true")); got != 1 {
		t.Fatalf("expected one cached query, got %v", got)
	}
	if got := testutil.ToFloat64(m.tokensTotal.WithLabelValues("completion", "gpt-4o-mini")); got != 200 {
		t.Fatalf("expected 200 completion tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.enhancementRuns.WithLabelValues("true")); got != 1 {
		t.Fatalf("expected one applied enhancement, got %v", got)
	}
	if got := testutil.CollectAndCount(m.noContentTotal); got != 0 {
		t.Fatalf("expected no no-content series, got %d", got)
	}
}

func TestResilienceMetricsTracksBreakerState(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveRetry("openai.complete")
	m.ObserveBreakerState("openai.complete", "open")
	m.ObserveBreakerState("openai.complete", "bogus")

	if got := testutil.ToFloat64(m.retries.WithLabelValues("openai.complete")); got != 1 {
		t.Fatalf("expected one retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("openai.complete")); got != 2 {
		t.Fatalf("expected open breaker gauge 2, got %v", got)
	}
}

func TestWorkerMetricsRecordsMaintenance(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.RecordMaintenance(domain.MaintenanceReport{ClearedForLowHitRate: true, EvictedForSize: 7, HitRate: 0.2, UsedMemoryMB: 120}, time.Second, nil)
	m.RecordMaintenance(domain.MaintenanceReport{}, time.Second, errors.New("redis down"))

	m.StartInvalidation()
	m.FinishInvalidation(12, nil)

	if got := testutil.ToFloat64(m.maintenanceEvicted); got != 7 {
		t.Fatalf("expected 7 evicted keys, got %v", got)
	}
	if got := testutil.ToFloat64(m.maintenanceTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected one failed pass, got %v", got)
	}
	if got := testutil.ToFloat64(m.invalidatedKeys); got != 12 {
		t.Fatalf("expected 12 invalidated keys, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventsInFlight); got != 0 {
		t.Fatalf("expected no events in flight, got %v", got)
	}
}
