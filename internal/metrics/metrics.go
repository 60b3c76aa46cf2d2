// Package metrics exposes the service's Prometheus instrumentation behind
// a private registry so tests can create isolated collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credence"

// Metrics holds every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Fusions          *prometheus.CounterVec
	ConflictObserved prometheus.Histogram
	HighConflict     prometheus.Counter
	EvidenceAttached prometheus.Counter

	RefusionRuns    prometheus.Counter
	RefusedClaims   prometheus.Counter
	ExpiredEvidence prometheus.Counter
}

// New builds and registers all collectors on a fresh registry, including
// the standard Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration by method and route.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),

		Fusions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fusions_total",
				Help:      "Fusion runs by rule and outcome.",
			},
			[]string{"rule", "status"},
		),
		ConflictObserved: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fusion_conflict",
				Help:      "Conflict K observed per fusion run.",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
			},
		),
		HighConflict: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fusion_high_conflict_total",
				Help:      "Fusion runs that crossed the high-conflict advisory threshold.",
			},
		),
		EvidenceAttached: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_attached_total",
				Help:      "Evidence rows accepted.",
			},
		),

		RefusionRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refusion_runs_total",
				Help:      "Background re-fusion passes.",
			},
		),
		RefusedClaims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refusion_claims_total",
				Help:      "Claims re-fused by the background pass.",
			},
		),
		ExpiredEvidence: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_expired_total",
				Help:      "Evidence rows removed by the expirer.",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Fusions,
		m.ConflictObserved,
		m.HighConflict,
		m.EvidenceAttached,
		m.RefusionRuns,
		m.RefusedClaims,
		m.ExpiredEvidence,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFusion records one fusion outcome.
func (m *Metrics) ObserveFusion(rule string, conflict float64, highConflict bool) {
	status := "ok"
	if highConflict {
		status = "high_conflict"
		m.HighConflict.Inc()
	}
	m.Fusions.WithLabelValues(rule, status).Inc()
	m.ConflictObserved.Observe(conflict)
}

// ObserveFusionError records a failed fusion run.
func (m *Metrics) ObserveFusionError(rule string) {
	m.Fusions.WithLabelValues(rule, "error").Inc()
}
