package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	splitsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shards_splits_emitted_total",
		Help: "Splits handed to the query engine",
	}, []string{"connector", "bucketed"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shards_split_batches_total",
		Help: "Split batches produced, by outcome",
	}, []string{"connector", "outcome"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shards_split_batch_duration_seconds",
		Help:    "Time spent producing one split batch",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
	}, []string{"connector"})

	reassignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shards_optimistic_reassignments_total",
		Help: "Orphaned shards assigned to a random live node for restore from backup",
	}, []string{"connector"})

	splitSourcesOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shards_split_sources_open",
		Help: "Split sources created and not yet closed",
	}, []string{"connector"})

	qdbOperation = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shards_qdb_operation_duration_seconds",
		Help:    "Metadata store operation latency",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"operation"})
)

const (
	OutcomeOK = "ok"
)

func RecordSplit(connector string, bucketed bool) {
	label := "false"
	if bucketed {
		label = "true"
	}
	splitsEmitted.WithLabelValues(connector, label).Inc()
}

// RecordBatch counts a finished batch. outcome is OutcomeOK or an error code.
func RecordBatch(connector string, outcome string, d time.Duration) {
	batchesTotal.WithLabelValues(connector, outcome).Inc()
	batchDuration.WithLabelValues(connector).Observe(d.Seconds())
}

func RecordReassignment(connector string) {
	reassignments.WithLabelValues(connector).Inc()
}

func SplitSourceOpened(connector string) {
	splitSourcesOpen.WithLabelValues(connector).Inc()
}

func SplitSourceClosed(connector string) {
	splitSourcesOpen.WithLabelValues(connector).Dec()
}

func RecordQDBOperation(operation string, d time.Duration) {
	qdbOperation.WithLabelValues(operation).Observe(d.Seconds())
}
