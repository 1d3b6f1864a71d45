package telemetry

import "time"

// OperationBuckets covers lifecycle operations, from a validate-only run to
// a full create with service installation.
var OperationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// OperationsTotal counts lifecycle operations by operation and result
	OperationsTotal CounterVec = noopCounterVec{}

	// OperationDurationSeconds measures lifecycle operation latency
	OperationDurationSeconds HistogramVec = noopHistogramVec{}

	// ResolvedNodes tracks the size of the last resolved topology by provider kind
	ResolvedNodes GaugeVec = noopGaugeVec{}

	// SeedNodes tracks the number of seed nodes in the last vote table
	SeedNodes Gauge = NoopStat{}

	// ChangedSettings tracks static settings changed by the last update
	ChangedSettings Gauge = NoopStat{}

	// HistoryVersions tracks snapshots kept in the history store
	HistoryVersions Gauge = NoopStat{}
)

// InitMetrics registers all Prometheus metrics.
// Must be called after the registry exists.
func InitMetrics() {
	OperationsTotal = NewCounterVec(
		"operations_total",
		"Lifecycle operations by operation and result",
		[]string{"operation", "result"},
	)
	OperationDurationSeconds = NewHistogramVec(
		"operation_duration_seconds",
		"Lifecycle operation duration",
		[]string{"operation"},
		OperationBuckets,
	)
	ResolvedNodes = NewGaugeVec(
		"resolved_nodes",
		"Nodes in the last resolved topology",
		[]string{"kind"},
	)
	SeedNodes = NewGauge(
		"seed_nodes",
		"Seed nodes in the last vote table",
	)
	ChangedSettings = NewGauge(
		"changed_settings",
		"Static settings changed by the last update",
	)
	HistoryVersions = NewGauge(
		"history_versions",
		"Snapshots kept in the deployment history",
	)
}

// ObserveOperation records the result and duration of one operation.
func ObserveOperation(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	OperationsTotal.With(operation, result).Inc()
	OperationDurationSeconds.With(operation).Observe(time.Since(start).Seconds())
}
