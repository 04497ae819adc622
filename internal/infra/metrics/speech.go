package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(speechCallsTotal, speechLatencyMs, speechAudioBytes) }

var (
	speechCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speech_calls_total",
			Help: "Speech calls by direction (tts|stt) and outcome.",
		},
		[]string{"direction", "outcome"},
	)

	speechLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speech_latency_ms",
			Help:    "Speech call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 40000},
		},
		[]string{"direction"},
	)

	speechAudioBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speech_audio_bytes_total",
			Help: "Audio bytes produced (tts) or received (stt).",
		},
		[]string{"direction"},
	)
)

func ObserveSpeech(direction, outcome string, latency time.Duration, bytes int) {
	d := norm(direction)
	speechCallsTotal.WithLabelValues(d, norm(outcome)).Inc()
	speechLatencyMs.WithLabelValues(d).Observe(float64(latency.Milliseconds()))
	if bytes > 0 {
		speechAudioBytes.WithLabelValues(d).Add(float64(bytes))
	}
}
