package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(retentionRunsTotal, retentionDeletedTotal) }

var (
	retentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_runs_total",
			Help: "Exchange-log retention runs, labeled by status (ok|failed|skipped).",
		},
		[]string{"status"},
	)

	retentionDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Exchange rows removed by the retention worker.",
		},
	)
)

func ObserveRetentionRun(status string, deleted int64) {
	retentionRunsTotal.WithLabelValues(norm(status)).Inc()
	if deleted > 0 {
		retentionDeletedTotal.Add(float64(deleted))
	}
}
