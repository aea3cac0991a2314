package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

const namespace = "articles_assistant"

// HTTPServerMetrics covers the API process: transport, the query pipeline and upstream resilience.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	*ResilienceMetrics

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal      *prometheus.CounterVec
	queryErrors     *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	queryChunks     *prometheus.HistogramVec
	queryThreshold  *prometheus.HistogramVec
	noContentTotal  *prometheus.CounterVec
	enhancementRuns *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	labels := prometheus.Labels{"service": service}

	m := &HTTPServerMetrics{
		registry:          registry,
		ResilienceMetrics: NewResilienceMetrics(registry, service),

		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total HTTP requests processed.", ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request duration in seconds.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help: "Number of in-flight HTTP requests.", ConstLabels: labels,
		}),

		queryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "requests_total",
			Help: "Answered queries by search method and cache outcome.", ConstLabels: labels,
		}, []string{"search_method", "cached"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "errors_total",
			Help: "Failed queries by error kind.", ConstLabels: labels,
		}, []string{"search_method", "kind"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "query", Name: "duration_seconds",
			Help: "End-to-end query time in seconds.", ConstLabels: labels,
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"search_method", "cached"}),
		queryChunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "query", Name: "chunks_used",
			Help: "Chunks placed into the answer context.", ConstLabels: labels,
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"search_method"}),
		queryThreshold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "query", Name: "similarity_threshold",
			Help: "Similarity threshold applied per query.", ConstLabels: labels,
			Buckets: prometheus.LinearBuckets(0.1, 0.05, 15),
		}, []string{"search_method"}),
		noContentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "no_content_total",
			Help: "Queries that retrieved nothing above the threshold.", ConstLabels: labels,
		}, []string{"locale"}),
		enhancementRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "enhancements_total",
			Help: "Query enhancement attempts by whether the rewrite was applied.", ConstLabels: labels,
		}, []string{"applied"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "tokens_total",
			Help: "Token usage by kind and model.", ConstLabels: labels,
		}, []string{"kind", "model"}),
	}

	registry.MustRegister(
		m.requestTotal, m.requestDuration, m.requestInFlight,
		m.queryTotal, m.queryErrors, m.queryDuration, m.queryChunks, m.queryThreshold,
		m.noContentTotal, m.enhancementRuns, m.tokensTotal,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := NewStatusRecorder(w)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.Status())).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/cache/pattern/") {
		return "/v1/cache/pattern/{pattern}"
	}
	return path
}

// RecordQuery observes one answered query. Cached answers skip the
// pipeline-specific series since nothing was retrieved or generated.
func (m *HTTPServerMetrics) RecordQuery(resp *domain.QueryResponse, elapsed time.Duration) {
	md := resp.Metadata
	method := string(md.SearchMethod)
	cached := strconv.FormatBool(md.Cached)

	m.queryTotal.WithLabelValues(method, cached).Inc()
	m.queryDuration.WithLabelValues(method, cached).Observe(elapsed.Seconds())
	if md.Cached {
		return
	}

	m.queryChunks.WithLabelValues(method).Observe(float64(md.ChunksUsed))
	m.queryThreshold.WithLabelValues(method).Observe(md.Threshold)
	if md.ChunksRetrieved == 0 {
		m.noContentTotal.WithLabelValues(string(md.QueryLocale)).Inc()
	}
	if md.QueryEnhancement != nil {
		m.enhancementRuns.WithLabelValues(strconv.FormatBool(md.QueryEnhancement.Applied)).Inc()
	}

	model := md.Model
	if model == "" {
		model = "unknown"
	}
	for kind, n := range map[string]int{
		"context":    md.TokensUsed.Context,
		"prompt":     md.TokensUsed.Prompt,
		"completion": md.TokensUsed.Completion,
	} {
		if n > 0 {
			m.tokensTotal.WithLabelValues(kind, model).Add(float64(n))
		}
	}
}

func (m *HTTPServerMetrics) RecordQueryError(method domain.SearchMethod, kind string) {
	m.queryErrors.WithLabelValues(string(method), kind).Inc()
}

// StatusRecorder remembers the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *StatusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *StatusRecorder) Status() int {
	return w.status
}

func (w *StatusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
