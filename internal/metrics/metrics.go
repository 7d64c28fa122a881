// Package metrics exposes Prometheus collectors for pipeline executions.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	reg *prometheus.Registry

	// evaluations counts pipeline executions.
	// Labels: mode (query, infer, update, load), status (success, error)
	evaluations *prometheus.CounterVec

	// duration measures evaluation latency.
	// Labels: mode
	duration *prometheus.HistogramVec

	// passes tracks fixpoint passes per evaluation.
	passes prometheus.Histogram

	// derived counts facts derived by rules.
	// Labels: mode
	derived *prometheus.CounterVec

	// databaseFacts reports the size of the last database touched by load.
	databaseFacts prometheus.Gauge
}

// New registers the collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "nero"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "evaluations_total",
			Help:      "Pipeline executions by mode and status",
		}, []string{"mode", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "evaluation_duration_seconds",
			Help:      "Evaluation latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"mode"}),
		passes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "eval",
			Name:      "fixpoint_passes",
			Help:      "Fixpoint passes per evaluation, summed over strata",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		derived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eval",
			Name:      "facts_derived_total",
			Help:      "Facts derived by rules",
		}, []string{"mode"}),
		databaseFacts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "facts",
			Help:      "Facts held by the most recently loaded database",
		}),
	}
}

// ObserveEvaluation records one pipeline execution.
func (m *Metrics) ObserveEvaluation(mode string, d time.Duration, passes, derived int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.evaluations.WithLabelValues(mode, status).Inc()
	m.duration.WithLabelValues(mode).Observe(d.Seconds())
	if err == nil {
		m.passes.Observe(float64(passes))
		m.derived.WithLabelValues(mode).Add(float64(derived))
	}
}

// SetDatabaseFacts records a database size.
func (m *Metrics) SetDatabaseFacts(n int) {
	if m == nil {
		return
	}
	m.databaseFacts.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
