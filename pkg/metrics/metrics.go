package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Progress metrics
	CompletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_completions_total",
			Help: "Total number of habit completions recorded",
		},
	)

	XpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_xp_awarded_total",
			Help: "Total XP awarded by event type",
		},
		[]string{"type"},
	)

	XpDeductedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_xp_deducted_total",
			Help: "Total XP deducted by event type",
		},
		[]string{"type"},
	)

	SnapshotRecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grove_snapshot_recompute_duration_seconds",
			Help:    "Time taken to rebuild a habit progress snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync queue metrics
	SyncQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grove_sync_queue_depth",
			Help: "Number of sync operations by status",
		},
		[]string{"status"},
	)

	SyncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grove_sync_attempts_total",
			Help: "Total sync attempts by result",
		},
		[]string{"result"},
	)

	SyncAbandonedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grove_sync_abandoned_total",
			Help: "Total sync operations abandoned after exhausting retries",
		},
	)

	SyncDrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grove_sync_drain_duration_seconds",
			Help:    "Duration of sync queue drain passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(CompletionsTotal)
	prometheus.MustRegister(XpAwardedTotal)
	prometheus.MustRegister(XpDeductedTotal)
	prometheus.MustRegister(SnapshotRecomputeDuration)
	prometheus.MustRegister(SyncQueueDepth)
	prometheus.MustRegister(SyncAttemptsTotal)
	prometheus.MustRegister(SyncAbandonedTotal)
	prometheus.MustRegister(SyncDrainDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
