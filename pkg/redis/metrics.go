package redis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks cache performance statistics
type Metrics struct {
	lookups       *prometheus.CounterVec   // result: hit, miss, error
	operations    *prometheus.HistogramVec // op: get, set, delete
	compression   prometheus.Counter
	invalidations prometheus.Counter
	dependencies  prometheus.Counter
}

// NewMetrics creates the cache collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_cache_lookups_total",
			Help: "Cache lookups by result.",
		}, []string{"result"}),
		operations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docs4go_cache_operation_duration_seconds",
			Help:    "Latency of Redis commands issued by the cache.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op"}),
		compression: factory.NewCounter(prometheus.CounterOpts{
			Name: "docs4go_cache_compression_saved_bytes_total",
			Help: "Bytes saved by compressing cached values.",
		}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "docs4go_cache_invalidations_total",
			Help: "Batches of keys removed by invalidation.",
		}),
		dependencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "docs4go_cache_dependencies_total",
			Help: "Cache keys registered as dependent on a document type.",
		}),
	}
}

// RecordCacheHit increments cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

// RecordCacheError increments cache error counter
func (m *Metrics) RecordCacheError() {
	m.lookups.WithLabelValues("error").Inc()
}

// RecordGet records a get operation with latency
func (m *Metrics) RecordGet(duration time.Duration) {
	m.operations.WithLabelValues("get").Observe(duration.Seconds())
}

// RecordSet records a set operation with latency
func (m *Metrics) RecordSet(duration time.Duration) {
	m.operations.WithLabelValues("set").Observe(duration.Seconds())
}

// RecordDelete records a delete operation with latency
func (m *Metrics) RecordDelete(duration time.Duration) {
	m.operations.WithLabelValues("delete").Observe(duration.Seconds())
}

// RecordCompression records bytes saved via compression
func (m *Metrics) RecordCompression(bytesSaved int) {
	m.compression.Add(float64(bytesSaved))
}

// RecordInvalidation increments invalidation counter
func (m *Metrics) RecordInvalidation() {
	m.invalidations.Inc()
}

// RecordDependency increments dependency counter
func (m *Metrics) RecordDependency() {
	m.dependencies.Inc()
}
