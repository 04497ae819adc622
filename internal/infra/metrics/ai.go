package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crazeai/internal/domain/ports/adapter"
)

func init() {
	register(
		completionsTotal,
		completionLatencyMs,
		completionTokens,
	)
}

var (
	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_completions_total",
			Help: "Completion calls per provider/model and outcome (ok|timeout|network|error).",
		},
		[]string{"provider", "model", "outcome"},
	)

	completionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_completion_latency_ms",
			Help:    "Completion latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		},
		[]string{"provider", "model", "outcome"},
	)

	completionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_completion_tokens",
			Help: "Tokens consumed per provider/model and kind (prompt|completion).",
		},
		[]string{"provider", "model", "kind"},
	)
)

func ObserveCompletion(provider, model, outcome string, latency time.Duration, u adapter.Usage) {
	p, m, o := norm(provider), norm(model), norm(outcome)
	completionsTotal.WithLabelValues(p, m, o).Inc()
	completionLatencyMs.WithLabelValues(p, m, o).Observe(float64(latency.Milliseconds()))
	if u.PromptTokens > 0 {
		completionTokens.WithLabelValues(p, m, "prompt").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		completionTokens.WithLabelValues(p, m, "completion").Add(float64(u.CompletionTokens))
	}
}
