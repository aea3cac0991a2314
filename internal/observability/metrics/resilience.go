package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// ResilienceMetrics implements resilience.Observer.
type ResilienceMetrics struct {
	retries      *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(registerer prometheus.Registerer, service string) *ResilienceMetrics {
	labels := prometheus.Labels{"service": service}
	m := &ResilienceMetrics{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "retries_total",
			Help: "Retried upstream calls by operation.", ConstLabels: labels,
		}, []string{"operation"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "breaker_state",
			Help: "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).", ConstLabels: labels,
		}, []string{"operation"}),
	}
	registerer.MustRegister(m.retries, m.breakerState)
	return m
}

func (m *ResilienceMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *ResilienceMetrics) ObserveBreakerState(operation, state string) {
	value, ok := breakerStates[state]
	if !ok {
		return
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
