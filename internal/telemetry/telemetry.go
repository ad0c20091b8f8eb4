// Package telemetry exposes Prometheus metrics for the analysis pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/tradescope/internal/analysis"
)

const namespace = "tradescope"

// Metrics implements analysis.Recorder and collector.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	analyses   *prometheus.CounterVec
	critiques  *prometheus.CounterVec
	iterations prometheus.Histogram
	stages     *prometheus.HistogramVec
	searches   *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// New registers every collector on a private registry along with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by final status.",
		}, []string{"status"}),
		critiques: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critique_decisions_total",
			Help:      "Critic decisions by outcome and decision path.",
		}, []string{"decision", "path"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinement_iterations",
			Help:      "Refinement rounds used per analysis.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per workflow stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"stage"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Outbound search requests by provider and status.",
		}, []string{"provider", "status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by window.",
		}, []string{"window"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.analyses, m.critiques, m.iterations, m.stages, m.searches, m.rejections,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) CritiqueDecision(decision analysis.Decision, path string) {
	m.critiques.WithLabelValues(string(decision), path).Inc()
}

func (m *Metrics) AnalysisFinished(status string, iterations int) {
	m.analyses.WithLabelValues(status).Inc()
	m.iterations.Observe(float64(iterations))
}

func (m *Metrics) SearchRequest(provider, status string) {
	m.searches.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RateLimitRejection(window string) {
	m.rejections.WithLabelValues(window).Inc()
}
