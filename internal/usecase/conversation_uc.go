package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/retry"
)

// Conversation is the client turn controller. It allows one turn in flight: a new
// submission cancels the previous one, and a superseded turn never touches the transcript.
type Conversation struct {
	store   *SessionStore
	chat    adapter.ChatService
	speech  *SpeechBridge // optional
	prompts *PromptBuilder
	policy  retry.Policy
	voice   *model.VoiceMachine
	caps    model.Capabilities
	log     *zerolog.Logger

	diagnostic *model.DiagnosticInfo

	// SpeakReplies plays each reply through the speech bridge when synthesis is available.
	SpeakReplies bool

	slot    retry.Slot
	mu      sync.Mutex
	pending *model.ChatRequest
	lastErr error
}

type ConversationDeps struct {
	Store        *SessionStore
	Chat         adapter.ChatService
	Speech       *SpeechBridge
	Prompts      *PromptBuilder
	Policy       retry.Policy
	Capabilities model.Capabilities
	Log          *zerolog.Logger
	// Diagnostic, when set, rides along on every chat request.
	Diagnostic *model.DiagnosticInfo
}

func NewConversation(d ConversationDeps) *Conversation {
	c := &Conversation{
		store:   d.Store,
		chat:    d.Chat,
		speech:  d.Speech,
		prompts: d.Prompts,
		policy:  retry.Normalize(d.Policy),
		voice:   model.NewVoiceMachine(),
		caps:    d.Capabilities,
		log:     d.Log,

		diagnostic: d.Diagnostic,
	}
	if c.speech != nil {
		c.speech.SetHooks(SpeechHooks{
			OnPlaybackStart: func() { c.fire(model.EventPlaybackStarted) },
			OnPlaybackEnd:   func() { c.fire(model.EventPlaybackEnded) },
			OnError:         func(error) { c.fire(model.EventFailed) },
		})
	}
	return c
}

// Voice exposes the state machine so a UI can subscribe to transitions.
func (c *Conversation) Voice() *model.VoiceMachine { return c.voice }

func (c *Conversation) Capabilities() model.Capabilities { return c.caps }

func (c *Conversation) Snapshot() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Pending returns the last failed request, kept for an identical resubmission.
func (c *Conversation) Pending() (model.ChatRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return model.ChatRequest{}, false
	}
	return *c.pending, true
}

// LastError is the failure of the most recent turn, nil after a success.
func (c *Conversation) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit runs one typed turn.
func (c *Conversation) Submit(ctx context.Context, text string) (model.ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatReply{}, &domain.ValidationError{Field: "message", Reason: "required"}
	}

	ctx, release := c.slot.Begin(ctx)
	defer release()
	if c.speech != nil {
		c.speech.Stop()
	}
	c.fire(model.EventTurnStarted)

	c.mu.Lock()
	st := c.store.State()
	st.AppendUserMessage(text)
	if st.UserName == "" {
		// the name is kept even if this turn fails
		if _, err := c.store.RecordNameIfAbsent(ctx, ExtractName(text, st.IsFirstMessage)); err != nil {
			c.log.Warn().Err(err).Msg("could not persist user name")
		}
	}
	req := model.ChatRequest{Message: text, UserName: st.UserName, IsFirstMessage: st.IsFirstMessage, Diagnostic: c.diagnostic}
	st.AdvancePastFirstMessage()
	c.pending = &req
	c.mu.Unlock()

	return c.send(ctx, req)
}

// Retry resends the preserved failed request unchanged, with a fresh attempt count.
func (c *Conversation) Retry(ctx context.Context) (model.ChatReply, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return model.ChatReply{}, domain.ErrNothingToRetry
	}
	req := *c.pending
	c.mu.Unlock()

	ctx, release := c.slot.Begin(ctx)
	defer release()
	c.fire(model.EventTurnStarted)
	return c.send(ctx, req)
}

// SubmitVoice records one utterance with capture and runs it as a turn.
func (c *Conversation) SubmitVoice(ctx context.Context, capture adapter.CaptureSession) (model.ChatReply, error) {
	if c.speech == nil || !c.caps.CanRecognizeSpeech {
		return model.ChatReply{}, domain.ErrUnsupported
	}
	c.speech.Stop()
	c.fire(model.EventCaptureStarted)

	text, err := c.speech.Transcribe(ctx, capture)
	switch {
	case err == nil:
		c.fire(model.EventCaptureResult)
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, context.Canceled):
		c.fire(model.EventCaptureAborted)
		return model.ChatReply{}, err
	case domain.IsTimeout(err):
		c.fire(model.EventTimedOut)
		return model.ChatReply{}, err
	default:
		c.fire(model.EventFailed)
		return model.ChatReply{}, err
	}
	return c.Submit(ctx, text)
}

func (c *Conversation) send(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	reply, err := retry.Do(ctx, c.policy, func(ctx context.Context, a retry.Attempt) (model.ChatReply, error) {
		return c.chat.Chat(ctx, req)
	}, retry.WithOp("chat"), retry.WithObserver(c.observe))

	c.mu.Lock()
	if ctx.Err() != nil {
		// superseded or abandoned; the newer turn owns the transcript
		c.mu.Unlock()
		if err == nil {
			err = context.Cause(ctx)
		}
		return model.ChatReply{}, err
	}
	st := c.store.State()
	if err != nil {
		c.lastErr = err
		st.AppendAIMessage(c.prompts.Fallback(err))
		c.mu.Unlock()

		if domain.IsTimeout(err) {
			c.fire(model.EventTimedOut)
		} else {
			c.fire(model.EventFailed)
		}
		c.log.Warn().Err(err).Msg("chat turn failed")
		return model.ChatReply{}, err
	}

	c.pending = nil
	c.lastErr = nil
	name := reply.DetectedName
	if name == "" {
		name = req.UserName
	}
	if _, perr := c.store.RecordNameIfAbsent(ctx, name); perr != nil {
		c.log.Warn().Err(perr).Msg("could not persist user name")
	}
	st.AppendAIMessage(reply.Reply)
	c.mu.Unlock()

	c.fire(model.EventServiceReplied)
	if c.speech != nil && c.SpeakReplies && c.caps.CanSynthesizeSpeech {
		c.speech.Speak(context.WithoutCancel(ctx), reply.Reply)
	} else {
		c.fire(model.EventPlaybackEnded)
	}
	return reply, nil
}

// Reset abandons any turn in flight and restarts the transcript with a greeting.
// The learned name is kept.
func (c *Conversation) Reset() {
	c.slot.Cancel()
	if c.speech != nil {
		c.speech.Stop()
	}
	c.mu.Lock()
	c.store.Reset()
	c.pending = nil
	c.lastErr = nil
	c.mu.Unlock()
	c.fire(model.EventReset)
}

// ForgetName clears the learned name everywhere on this client.
func (c *Conversation) ForgetName(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ForgetName(ctx)
}

// Close stops speech playback and cancels the in-flight turn.
func (c *Conversation) Close() {
	c.slot.Cancel()
	if c.speech != nil {
		c.speech.Close()
	}
}

func (c *Conversation) observe(a retry.Attempt, err error) {
	if err == nil {
		return
	}
	c.log.Debug().Err(err).Int("attempt", a.Index).Dur("timeout", a.Timeout).Msg("chat attempt failed")
}

func (c *Conversation) fire(ev model.VoiceEvent) {
	if _, err := c.voice.Fire(ev); err != nil {
		c.log.Debug().Err(err).Msg("voice event ignored")
	}
}
