package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, httpDurationMs, rateLimitBlocks) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP handler duration in milliseconds.",
			Buckets: []float64{5, 25, 100, 250, 1000, 2500, 5000, 15000, 30000},
		},
		[]string{"route"},
	)

	rateLimitBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_blocks_total",
			Help: "Requests rejected by the per-session rate limiter.",
		},
		[]string{"route"},
	)
)

func ObserveHTTP(route, method string, status int, d time.Duration) {
	r := norm(route)
	httpRequestsTotal.WithLabelValues(r, method, strconv.Itoa(status)).Inc()
	httpDurationMs.WithLabelValues(r).Observe(float64(d.Milliseconds()))
}

func IncRateLimitBlock(route string) {
	rateLimitBlocks.WithLabelValues(norm(route)).Inc()
}
