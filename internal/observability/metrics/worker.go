package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// WorkerMetrics covers the cache worker: content-update invalidations and maintenance passes.
type WorkerMetrics struct {
	registry *prometheus.Registry
	*ResilienceMetrics

	invalidationsTotal  *prometheus.CounterVec
	invalidatedKeys     prometheus.Counter
	eventsInFlight      prometheus.Gauge
	maintenanceTotal    *prometheus.CounterVec
	maintenanceDuration prometheus.Histogram
	maintenanceEvicted  prometheus.Counter
	lowHitRateClears    prometheus.Counter
	cacheHitRate        prometheus.Gauge
	cacheMemoryMB       prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry:          registry,
		ResilienceMetrics: NewResilienceMetrics(registry, service),

		invalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "content_invalidations_total",
			Help: "Content-update events handled by status.", ConstLabels: labels,
		}, []string{"status"}),
		invalidatedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "invalidated_keys_total",
			Help: "Cached answers removed after content updates.", ConstLabels: labels,
		}),
		eventsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "events_in_flight",
			Help: "Content-update events being processed.", ConstLabels: labels,
		}),
		maintenanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "maintenance_runs_total",
			Help: "Cache maintenance passes by status.", ConstLabels: labels,
		}, []string{"status"}),
		maintenanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "maintenance_duration_seconds",
			Help: "Cache maintenance pass duration in seconds.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}),
		maintenanceEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "maintenance_evicted_keys_total",
			Help: "Keys evicted by maintenance because the cache outgrew its size limit.", ConstLabels: labels,
		}),
		lowHitRateClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "low_hit_rate_clears_total",
			Help: "Full cache clears triggered by a low hit rate.", ConstLabels: labels,
		}),
		cacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hit_rate",
			Help: "Cache hit rate seen by the last maintenance pass.", ConstLabels: labels,
		}),
		cacheMemoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "used_memory_megabytes",
			Help: "Redis used memory seen by the last maintenance pass.", ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.invalidationsTotal, m.invalidatedKeys, m.eventsInFlight,
		m.maintenanceTotal, m.maintenanceDuration, m.maintenanceEvicted, m.lowHitRateClears,
		m.cacheHitRate, m.cacheMemoryMB,
	)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartInvalidation() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishInvalidation(removed int, err error) {
	m.eventsInFlight.Dec()
	if err != nil {
		m.invalidationsTotal.WithLabelValues("error").Inc()
		return
	}
	m.invalidationsTotal.WithLabelValues("success").Inc()
	m.invalidatedKeys.Add(float64(removed))
}

func (m *WorkerMetrics) RecordMaintenance(report domain.MaintenanceReport, elapsed time.Duration, err error) {
	m.maintenanceDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.maintenanceTotal.WithLabelValues("error").Inc()
		return
	}
	m.maintenanceTotal.WithLabelValues("success").Inc()
	if report.ClearedForLowHitRate {
		m.lowHitRateClears.Inc()
	}
	m.maintenanceEvicted.Add(float64(report.EvictedForSize))
	m.cacheHitRate.Set(report.HitRate)
	m.cacheMemoryMB.Set(report.UsedMemoryMB)
}
