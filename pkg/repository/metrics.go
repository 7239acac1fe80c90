package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes repository counters to Prometheus.
type Metrics struct {
	saves           *prometheus.CounterVec
	saveDuration    *prometheus.HistogramVec
	conflicts       *prometheus.CounterVec
	merges          *prometheus.CounterVec
	exhausted       *prometheus.CounterVec
	cascadeActions  *prometheus.CounterVec
	softDeletes     *prometheus.CounterVec
	hardDeletes     *prometheus.CounterVec
	associationHits *prometheus.CounterVec
	associationMiss *prometheus.CounterVec
}

// NewMetrics creates the repository collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_saves_total",
			Help: "Entity saves by outcome",
		}, []string{"type", "outcome"}),
		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docs4go_save_duration_seconds",
			Help:    "Save latency including conflict retries",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"type"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_write_conflicts_total",
			Help: "Write conflicts reported by the store",
		}, []string{"type"}),
		merges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_conflict_merges_total",
			Help: "Automatic merges applied before a retry",
		}, []string{"type"}),
		exhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_conflict_retries_exhausted_total",
			Help: "Saves that failed after the last conflict retry",
		}, []string{"type"}),
		cascadeActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_cascade_actions_total",
			Help: "Dependents touched by destroy cascades",
		}, []string{"type", "action"}),
		softDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_soft_deletes_total",
			Help: "Entities marked deleted",
		}, []string{"type"}),
		hardDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_hard_deletes_total",
			Help: "Entities removed from the store",
		}, []string{"type"}),
		associationHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_association_cache_hits_total",
			Help: "Association reads served from the reference cache",
		}, []string{"type", "association"}),
		associationMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docs4go_association_cache_misses_total",
			Help: "Association reads that queried the store",
		}, []string{"type", "association"}),
	}
}

func (m *Metrics) recordCacheLookup(typ, assoc string, hit bool) {
	if hit {
		m.associationHits.WithLabelValues(typ, assoc).Inc()
		return
	}
	m.associationMiss.WithLabelValues(typ, assoc).Inc()
}
