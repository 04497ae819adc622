package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(kvReadsTotal) }

var kvReadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kv_reads_total",
		Help: "Key-value store reads by store and result (hit|miss|error).",
	},
	[]string{"store", "result"},
)

func IncKVRead(store, result string) {
	kvReadsTotal.WithLabelValues(norm(store), norm(result)).Inc()
}
