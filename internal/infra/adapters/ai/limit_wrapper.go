package ai

import (
	"context"
	"time"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/metrics"
)

// Compile-time check
var _ adapter.CompletionAdapter = (*limitedCompletion)(nil)

// limitedCompletion bounds concurrent upstream calls and records completion metrics.
type limitedCompletion struct {
	inner adapter.CompletionAdapter
	sem   chan struct{}
}

// NewLimitedCompletion wraps inner; maxConcurrent <= 0 means unbounded.
func NewLimitedCompletion(inner adapter.CompletionAdapter, maxConcurrent int) adapter.CompletionAdapter {
	l := &limitedCompletion{inner: inner}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedCompletion) Provider() string { return l.inner.Provider() }
func (l *limitedCompletion) Model() string    { return l.inner.Model() }

func (l *limitedCompletion) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			// waiting for a slot counts against the same deadline
			err := classify(ctx, l.inner.Provider(), ctx.Err(), nil)
			metrics.ObserveCompletion(l.Provider(), l.Model(), outcome(err), 0, adapter.Usage{})
			return adapter.Completion{}, err
		}
	}

	start := time.Now()
	c, err := l.inner.Complete(ctx, req)
	metrics.ObserveCompletion(l.Provider(), l.Model(), outcome(err), time.Since(start), c.Usage)
	return c, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsTimeout(err):
		return "timeout"
	case domain.IsNetwork(err):
		return "network"
	default:
		return "error"
	}
}
