package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics.
type Metrics interface {
	RecordAttempt(ctx context.Context, labels AttemptLabels, duration time.Duration)
	RecordResolution(ctx context.Context, labels ResolutionLabels, elapsed time.Duration)
	RecordBatch(ctx context.Context, status string, size int)
}

// AttemptLabels contains the dimensions of a single backend attempt.
type AttemptLabels struct {
	Backend  string
	Position int
	Status   string // success or a backend failure code
}

// ResolutionLabels contains the dimensions of a finished resolution.
type ResolutionLabels struct {
	Model  string // empty when every backend failed
	Status string // success, failure or canceled
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordAttempt(context.Context, AttemptLabels, time.Duration)       {}
func (NopMetrics) RecordResolution(context.Context, ResolutionLabels, time.Duration) {}
func (NopMetrics) RecordBatch(context.Context, string, int)                          {}

// PrometheusMetrics records into a dedicated Prometheus registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	attemptsTotal     *prometheus.CounterVec
	attemptLatency    *prometheus.HistogramVec
	resolutionsTotal  *prometheus.CounterVec
	resolutionLatency *prometheus.HistogramVec
	batchesTotal      *prometheus.CounterVec
	batchSize         prometheus.Histogram
}

// NewPrometheusMetrics registers the detector collectors on a new registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	latencyBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 6, 8, 12}

	return &PrometheusMetrics{
		registry: registry,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detector_backend_attempts_total",
				Help: "Total number of backend attempts",
			},
			[]string{"backend", "position", "status"},
		),
		attemptLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "detector_backend_attempt_seconds",
				Help:    "Duration of a single backend attempt in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"backend"},
		),
		resolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detector_resolutions_total",
				Help: "Total number of resolved questions",
			},
			[]string{"model", "status"},
		),
		resolutionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "detector_resolution_seconds",
				Help:    "Time from the first attempt to the final result in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"status"},
		),
		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "detector_batches_total",
				Help: "Total number of batch resolutions",
			},
			[]string{"status"},
		),
		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "detector_batch_size",
				Help:    "Number of questions per batch",
				Buckets: prometheus.LinearBuckets(1, 5, 10),
			},
		),
	}
}

// RecordAttempt counts one backend attempt.
func (m *PrometheusMetrics) RecordAttempt(_ context.Context, labels AttemptLabels, duration time.Duration) {
	m.attemptsTotal.WithLabelValues(labels.Backend, strconv.Itoa(labels.Position), labels.Status).Inc()
	m.attemptLatency.WithLabelValues(labels.Backend).Observe(duration.Seconds())
}

// RecordResolution counts one finished resolution.
func (m *PrometheusMetrics) RecordResolution(_ context.Context, labels ResolutionLabels, elapsed time.Duration) {
	m.resolutionsTotal.WithLabelValues(labels.Model, labels.Status).Inc()
	m.resolutionLatency.WithLabelValues(labels.Status).Observe(elapsed.Seconds())
}

// RecordBatch counts one batch.
func (m *PrometheusMetrics) RecordBatch(_ context.Context, status string, size int) {
	m.batchesTotal.WithLabelValues(status).Inc()
	m.batchSize.Observe(float64(size))
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
