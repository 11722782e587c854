// Package metrics holds the service's Prometheus collectors (SPEC_FULL.md's
// ambient ops-surface section), grounded on the teacher's per-subsystem
// Metrics struct pattern (x/publisher/metrics.go,
// internal/network/metrics.go): one struct bundling every collector for
// a subsystem, constructed once and passed by reference to whatever
// records against it. The teacher builds its collectors through a
// private component-registry helper that isn't part of this retrieval
// pack; this package registers directly through
// promauto.With(registry), prometheus's own standard registration
// helper, which gives the same "construct once, panic on duplicate
// registration" guarantee without depending on code this pack doesn't
// have.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DurationBuckets covers proving operations from sub-second dry runs up
// to multi-minute aggregation jobs.
var DurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

// CountBuckets covers small integer counts such as aggregation batch
// size or indexer retry counts.
var CountBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34}

// Metrics bundles every Prometheus collector the proving service
// exposes.
type Metrics struct {
	registry *prometheus.Registry

	ProvingDuration *prometheus.HistogramVec
	JobsByState     *prometheus.GaugeVec
	IndexerRetries  prometheus.Counter
	AggregationSize prometheus.Histogram
	ErrorsTotal     *prometheus.CounterVec
}

// New constructs a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProvingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prover",
			Name:      "proving_duration_seconds",
			Help:      "Duration of proving operations by operation name",
			Buckets:   DurationBuckets,
		}, []string{"operation"}),

		JobsByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "prover",
			Name:      "jobs_by_state",
			Help:      "Number of async proving jobs currently in each state",
		}, []string{"state"}),

		IndexerRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "prover",
			Name:      "indexer_retries_total",
			Help:      "Total number of indexer lookup retries",
		}),

		AggregationSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "prover",
			Name:      "aggregation_size",
			Help:      "Number of inner proofs per aggregation batch",
			Buckets:   CountBuckets,
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prover",
			Name:      "errors_total",
			Help:      "Total number of errors by classification and operation",
		}, []string{"type", "operation"}),
	}
}

// Registry exposes the underlying registry for wiring into an HTTP
// /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordProvingDuration records the wall-clock duration of one proving
// operation.
func (m *Metrics) RecordProvingDuration(operation string, seconds float64) {
	m.ProvingDuration.WithLabelValues(operation).Observe(seconds)
}

// SetJobsByState replaces the current gauge value for a job state, for
// the collector's periodic stats snapshot.
func (m *Metrics) SetJobsByState(state string, count float64) {
	m.JobsByState.WithLabelValues(state).Set(count)
}

// RecordIndexerRetry records one indexer lookup retry.
func (m *Metrics) RecordIndexerRetry() {
	m.IndexerRetries.Inc()
}

// RecordAggregationSize records the number of inner proofs in an
// aggregation batch.
func (m *Metrics) RecordAggregationSize(n int) {
	m.AggregationSize.Observe(float64(n))
}

// RecordError records an error by classification and the operation it
// occurred in.
func (m *Metrics) RecordError(errType, operation string) {
	m.ErrorsTotal.WithLabelValues(errType, operation).Inc()
}
