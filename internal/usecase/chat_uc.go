// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/domain/ports/repository"
	"crazeai/internal/infra/logging"
)

// ChatUseCase serves POST /chat: one system+user completion per call.
type ChatUseCase struct {
	ai        adapter.CompletionAdapter
	prompts   *PromptBuilder
	exchanges repository.ExchangeRepository // optional
	names     *NameMirror                   // optional
	timeout   time.Duration
	log       *zerolog.Logger
	devMode   bool
}

type ChatOption func(*ChatUseCase)

// WithExchangeLog records every call in repo.
func WithExchangeLog(repo repository.ExchangeRepository) ChatOption {
	return func(c *ChatUseCase) { c.exchanges = repo }
}

// WithNameMirror remembers detected names per session.
func WithNameMirror(m *NameMirror) ChatOption {
	return func(c *ChatUseCase) { c.names = m }
}

func NewChatUseCase(ai adapter.CompletionAdapter, prompts *PromptBuilder, timeout time.Duration, log *zerolog.Logger, devMode bool, opts ...ChatOption) *ChatUseCase {
	c := &ChatUseCase{ai: ai, prompts: prompts, timeout: timeout, log: log, devMode: devMode}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reply runs name extraction (when no name was sent), builds the persona prompt and
// completes under the upstream timeout. The session ID, when present, comes from ctx.
func (c *ChatUseCase) Reply(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return model.ChatReply{}, &domain.ValidationError{Field: "message", Reason: "required"}
	}
	sessionID := logging.SessIDFrom(ctx)
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.Reply")()

	if d := req.Diagnostic; d != nil {
		log.Info().
			Bool("mobile", d.IsMobile).
			Str("browser", d.BrowserName).
			Int("screen_width", d.ScreenWidth).
			Str("connection", d.Connection).
			Msg("client diagnostics")
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		mirrored, err := c.names.Get(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Msg("name mirror read failed")
		}
		userName = mirrored
	}

	var detected string
	if userName == "" {
		detected = ExtractName(msg, req.IsFirstMessage)
	}
	prompt := c.prompts.Build(userName, req.IsFirstMessage, detected)

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	comp, err := c.ai.Complete(cctx, adapter.CompletionRequest{SystemPrompt: prompt, UserMessage: msg})
	expired := errors.Is(cctx.Err(), context.DeadlineExceeded)
	cancel()
	latency := time.Since(start)

	if err != nil && expired {
		err = asTimeout(err, "completion", c.timeout, 1)
	}
	if err == nil && strings.TrimSpace(comp.Text) == "" {
		err = &domain.ServiceError{Service: c.ai.Provider(), Detail: "empty completion"}
	}

	c.record(ctx, log, sessionID, msg, detected, comp, latency, err)

	if err != nil {
		log.Error().Err(err).Str("provider", c.ai.Provider()).Dur("latency", latency).Msg("completion failed")
		return model.ChatReply{}, err
	}

	if detected != "" {
		if err := c.names.RecordIfAbsent(ctx, sessionID, detected); err != nil {
			log.Warn().Err(err).Msg("name mirror write failed")
		}
	}
	log.Info().
		Str("provider", comp.Provider).
		Str("model", comp.Model).
		Bool("first", req.IsFirstMessage).
		Str("message", logging.Redact(msg, c.devMode)).
		Dur("latency", latency).
		Msg("chat reply")

	return model.ChatReply{Reply: strings.TrimSpace(comp.Text), DetectedName: detected}, nil
}

func (c *ChatUseCase) record(ctx context.Context, log *zerolog.Logger, sessionID, msg, detected string, comp adapter.Completion, latency time.Duration, callErr error) {
	if c.exchanges == nil {
		return
	}
	ex := &model.Exchange{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Message:      msg,
		Reply:        comp.Text,
		DetectedName: detected,
		Provider:     c.ai.Provider(),
		Model:        c.ai.Model(),
		Status:       model.ExchangeOK,
		LatencyMs:    int(latency.Milliseconds()),
		CreatedAt:    time.Now().UTC(),
	}
	switch {
	case callErr == nil:
	case domain.IsTimeout(callErr):
		ex.Status = model.ExchangeTimeout
	default:
		ex.Status = model.ExchangeFailed
	}
	// detached so a client hang-up doesn't lose the row
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.exchanges.Save(sctx, ex); err != nil {
		log.Warn().Err(err).Msg("exchange log write failed")
	}
}

// History returns the most recent exchanges for a session, newest first.
func (c *ChatUseCase) History(ctx context.Context, sessionID string, limit int) ([]*model.Exchange, error) {
	if c.exchanges == nil {
		return nil, domain.ErrUnsupported
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return c.exchanges.ListBySession(ctx, sessionID, limit)
}

// Provider names the upstream completion backend.
func (c *ChatUseCase) Provider() string { return c.ai.Provider() }

// InProcess exposes a ChatUseCase through the client-side ChatService port.
func InProcess(uc *ChatUseCase) adapter.ChatService {
	return localChat{uc: uc}
}

type localChat struct{ uc *ChatUseCase }

func (l localChat) Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	return l.uc.Reply(ctx, req)
}
