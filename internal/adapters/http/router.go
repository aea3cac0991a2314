package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
	"github.com/achinchen/articles-assistant/internal/observability/metrics"
)

const maxRequestBody = 1 << 20

// HealthChecker is anything /healthz should ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the router. Cache, Thresholds, Enhancement and Corpus
// may be nil; their routes then answer 503.
type Dependencies struct {
	Query       ports.QueryService
	Feedback    ports.FeedbackRecorder
	Cache       ports.CacheAdmin
	Thresholds  ports.ThresholdAdmin
	Enhancement ports.EnhancementAdmin
	Corpus      ports.CorpusReader
	Health      map[string]HealthChecker
	Metrics     *metrics.HTTPServerMetrics
	Traffic     TrafficOptions
}

type Router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) *Router {
	return &Router{deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/ask", rt.ask)
	mux.HandleFunc("POST /v1/feedback", rt.feedback)
	mux.HandleFunc("GET /v1/stats", rt.corpusStats)

	mux.HandleFunc("GET /v1/cache/metrics", rt.cacheMetrics)
	mux.HandleFunc("DELETE /v1/cache/metrics", rt.resetCacheMetrics)
	mux.HandleFunc("GET /v1/cache/info", rt.cacheInfo)
	mux.HandleFunc("DELETE /v1/cache/pattern/{pattern}", rt.invalidateCachePattern)
	mux.HandleFunc("DELETE /v1/cache", rt.clearCache)
	mux.HandleFunc("POST /v1/cache/maintenance", rt.runCacheMaintenance)

	mux.HandleFunc("GET /v1/optimization/threshold/stats", rt.thresholdStats)
	mux.HandleFunc("GET /v1/optimization/threshold/config", rt.thresholdConfig)
	mux.HandleFunc("PUT /v1/optimization/threshold/config", rt.updateThresholdConfig)
	mux.HandleFunc("DELETE /v1/optimization/threshold/history", rt.clearThresholdHistory)
	mux.HandleFunc("GET /v1/optimization/threshold/export", rt.exportThresholdHistory)
	mux.HandleFunc("GET /v1/optimization/enhancement/config", rt.enhancementConfig)
	mux.HandleFunc("PUT /v1/optimization/enhancement/config", rt.updateEnhancementConfig)
	mux.HandleFunc("POST /v1/optimization/enhancement/test", rt.testEnhancement)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.deps.Traffic.MaxInFlight, rt.deps.Traffic.QueueTimeout)
	handler = rateLimitMiddleware(handler, rt.deps.Traffic.RateLimitRPS, rt.deps.Traffic.RateLimitBurst)
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.deps.Health))
	for name, checker := range rt.deps.Health {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (rt *Router) corpusStats(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Corpus == nil {
		writeUnavailable(w, "corpus stats")
		return
	}
	stats, err := rt.deps.Corpus.CorpusStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("request body is empty"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request_failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errorCode(err),
	})
}

func writeUnavailable(w http.ResponseWriter, feature string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": feature + " is disabled",
		"code":  "feature_disabled",
	})
}
