package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement service.
type Metrics struct {
	// --- Settlement operations ---
	OpsTotal    *prometheus.CounterVec // labels: op
	OpsRejected *prometheus.CounterVec // labels: op, reason
	OpDuration  *prometheus.HistogramVec

	// --- Intents ---
	IntentsActive     prometheus.Gauge
	IntentsExecuted   prometheus.Counter
	IntentsCancelled  *prometheus.CounterVec // labels: by
	OracleUnavailable prometheus.Counter
	LockedValue       *prometheus.GaugeVec // labels: token

	// --- Event log sequence ---
	CoreSequence prometheus.Gauge

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec // labels: stage
	PersistLastSequence  prometheus.Gauge

	// --- Outbound stream ---
	PublishDrops prometheus.Counter
}

// NewMetrics registers all metrics with the default registry. Call once per
// process; components accept a nil *Metrics and skip recording.
func NewMetrics() *Metrics {
	durationBuckets := []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

	return &Metrics{
		OpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "State-changing operations committed, by operation.",
		}, []string{"op"}),
		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_rejected_total",
			Help: "Operations rejected before commit, by operation and reason.",
		}, []string{"op", "reason"}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "End-to-end duration of settlement operations.",
			Buckets: durationBuckets,
		}, []string{"op"}),

		IntentsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_intents_active",
			Help: "Number of intents currently in the Active state.",
		}),
		IntentsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_intents_executed_total",
			Help: "Intents settled by an executor.",
		}),
		IntentsCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_intents_cancelled_total",
			Help: "Intents cancelled, by cancelling principal (creator/admin).",
		}, []string{"by"}),
		OracleUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_oracle_unavailable_total",
			Help: "Price checks that failed because an oracle leg had no feed.",
		}),
		LockedValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_locked_value",
			Help: "Tokens currently held in intent escrow, by token.",
		}, []string{"token"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_core_sequence",
			Help: "Last event sequence assigned by the settlement engine.",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_events_written_total",
			Help: "Events written to the Postgres event log.",
		}),
		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Duration of one persistence batch flush.",
			Buckets: durationBuckets,
		}),
		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Events per persistence batch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Persistence failures, by stage.",
		}, []string{"stage"}),
		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Last event sequence confirmed written to Postgres.",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Outbound events dropped because the publish channel was full.",
		}),
	}
}
