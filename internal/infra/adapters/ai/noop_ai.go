package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crazeai/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers locally for dev runs without an API key.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(log *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{log: log, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }
func (a *NoopAIAdapter) Model() string    { return "noop-ai-model" }

// Complete simulates a short upstream call and respects ctx.
func (a *NoopAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return adapter.Completion{}, classify(ctx, "noop", ctx.Err(), nil)
	}
	a.log.Debug().Int("prompt_len", len(req.SystemPrompt)).Msg("[noop-ai] completion")

	msg := strings.TrimSpace(req.UserMessage)
	if len(msg) > 40 {
		msg = msg[:40] + "..."
	}
	return adapter.Completion{
		Text:     fmt.Sprintf("Ugh. You said %q and I'm supposed to care?", msg),
		Provider: a.Provider(),
		Model:    a.Model(),
	}, nil
}
