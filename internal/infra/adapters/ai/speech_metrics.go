package ai

import (
	"context"
	"time"

	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/metrics"
)

type meteredSynthesizer struct{ inner adapter.SpeechSynthesizer }

// MeteredSynthesizer records call outcome, latency and audio size; nil stays nil.
func MeteredSynthesizer(inner adapter.SpeechSynthesizer) adapter.SpeechSynthesizer {
	if inner == nil {
		return nil
	}
	return meteredSynthesizer{inner: inner}
}

func (m meteredSynthesizer) Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error) {
	start := time.Now()
	a, err := m.inner.Synthesize(ctx, req)
	metrics.ObserveSpeech("tts", outcome(err), time.Since(start), len(a.Data))
	return a, err
}

type meteredTranscriber struct{ inner adapter.Transcriber }

func MeteredTranscriber(inner adapter.Transcriber) adapter.Transcriber {
	if inner == nil {
		return nil
	}
	return meteredTranscriber{inner: inner}
}

func (m meteredTranscriber) Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error) {
	start := time.Now()
	text, err := m.inner.Transcribe(ctx, req)
	metrics.ObserveSpeech("stt", outcome(err), time.Since(start), 0)
	return text, err
}
