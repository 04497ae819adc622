package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/logging"
	"crazeai/internal/retry"
)

func fastChatPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseTimeout: 15 * time.Millisecond, TimeoutIncrement: 5 * time.Millisecond, RetryDelay: time.Millisecond}
}

func newConversation(t *testing.T, kv *memKV, chat adapter.ChatService) *Conversation {
	t.Helper()
	prompts := NewPromptBuilder(nil)
	store := NewSessionStore(kv, prompts, logging.Nop())
	require.NoError(t, store.Load(context.Background()))
	return NewConversation(ConversationDeps{
		Store:   store,
		Chat:    chat,
		Prompts: prompts,
		Policy:  fastChatPolicy(),
		Log:     logging.Nop(),
	})
}

func TestConversation_FirstMessageIntroduction(t *testing.T) {
	ai := &fakeCompletion{reply: "Tunde. Great, another one."}
	uc := NewChatUseCase(ai, NewPromptBuilder(nil), time.Second, logging.Nop(), true)
	kv := newMemKV()
	conv := newConversation(t, kv, InProcess(uc))

	reply, err := conv.Submit(context.Background(), "I'm Tunde")
	require.NoError(t, err)
	assert.Equal(t, "Tunde. Great, another one.", reply.Reply)

	st := conv.Snapshot()
	assert.Equal(t, "Tunde", st.UserName)
	assert.False(t, st.IsFirstMessage)
	require.Len(t, st.Messages, 3) // greeting, user, reply
	want := []model.ChatMessage{
		{Text: st.Messages[0].Text},
		{Text: "I'm Tunde", IsUser: true},
		{Text: "Tunde. Great, another one."},
	}
	if diff := cmp.Diff(want, st.Messages, cmpopts.IgnoreFields(model.ChatMessage{}, "ID", "Timestamp")); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, reply.Reply, st.LastAIReply)

	prompt := ai.lastRequest().SystemPrompt
	assert.Contains(t, prompt, "acknowledge that you now know their name (Tunde)")

	persisted, err := kv.Read(context.Background(), UserNameKey)
	require.NoError(t, err)
	assert.Equal(t, "Tunde", persisted)
	assert.Equal(t, model.VoiceIdle, conv.Voice().State())
}

func TestConversation_ResetKeepsName(t *testing.T) {
	kv := newMemKV()
	_ = kv.Write(context.Background(), UserNameKey, "Ada")
	conv := newConversation(t, kv, &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("sure")}})

	_, err := conv.Submit(context.Background(), "tell me a joke")
	require.NoError(t, err)

	conv.Reset()

	st := conv.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.False(t, st.Messages[0].IsUser)
	assert.Contains(t, st.Messages[0].Text, "Ada")
	assert.True(t, st.IsFirstMessage)
	v, _ := kv.Read(context.Background(), UserNameKey)
	assert.Equal(t, "Ada", v)
}

func TestConversation_TimeoutsRetryThenFail(t *testing.T) {
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){hang}}
	conv := newConversation(t, newMemKV(), chat)

	_, err := conv.Submit(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsTimeout(err))
	assert.Equal(t, 3, chat.callCount())
	assert.Equal(t, model.VoiceError, conv.Voice().State())

	pending, ok := conv.Pending()
	require.True(t, ok)
	assert.Equal(t, "hello", pending.Message)

	st := conv.Snapshot()
	last := st.Messages[len(st.Messages)-1]
	assert.False(t, last.IsUser)
	assert.Contains(t, last.Text, "retry")
}

func TestConversation_ServiceErrorIsNotRetriedButCanBeResent(t *testing.T) {
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){
		failWith(&domain.ServiceError{Service: "chat", StatusCode: 500, Detail: "boom"}),
		replyWith("fine, Kemi"),
	}}
	conv := newConversation(t, newMemKV(), chat)

	_, err := conv.Submit(context.Background(), "Kemi here")
	require.Error(t, err)
	assert.Equal(t, 1, chat.callCount(), "non-timeout failures must not auto retry")

	reply, err := conv.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fine, Kemi", reply.Reply)

	require.Equal(t, 2, chat.callCount())
	assert.Equal(t, chat.calls[0], chat.calls[1], "manual retry must resend the identical request")
	_, ok := conv.Pending()
	assert.False(t, ok)
	assert.NoError(t, conv.LastError())
	assert.Equal(t, "Kemi", conv.Snapshot().UserName)

	_, err = conv.Retry(context.Background())
	assert.ErrorIs(t, err, domain.ErrNothingToRetry)
}

func TestConversation_NameSurvivesFailedFirstTurn(t *testing.T) {
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){
		failWith(&domain.ServiceError{Service: "chat", StatusCode: 500, Detail: "boom"}),
		replyWith("Tunde, wetin you want?"),
	}}
	kv := newMemKV()
	conv := newConversation(t, kv, chat)

	_, err := conv.Submit(context.Background(), "I'm Tunde")
	require.Error(t, err)
	assert.Equal(t, "Tunde", conv.Snapshot().UserName)

	_, err = conv.Submit(context.Background(), "what is the weather")
	require.NoError(t, err)

	assert.Equal(t, "Tunde", conv.Snapshot().UserName)
	persisted, err := kv.Read(context.Background(), UserNameKey)
	require.NoError(t, err)
	assert.Equal(t, "Tunde", persisted)

	require.Equal(t, 2, chat.callCount())
	assert.Equal(t, "Tunde", chat.calls[1].UserName)
	assert.False(t, chat.calls[1].IsFirstMessage)
}

func TestConversation_SendsDiagnostics(t *testing.T) {
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("ok")}}
	prompts := NewPromptBuilder(nil)
	store := NewSessionStore(newMemKV(), prompts, logging.Nop())
	require.NoError(t, store.Load(context.Background()))
	diag := &model.DiagnosticInfo{IsMobile: true, BrowserName: "cli"}
	conv := NewConversation(ConversationDeps{
		Store: store, Chat: chat, Prompts: prompts, Policy: fastChatPolicy(), Log: logging.Nop(),
		Diagnostic: diag,
	})

	_, err := conv.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, diag, chat.calls[0].Diagnostic)
}

func TestConversation_OfflineMessage(t *testing.T) {
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){
		failWith(&domain.NetworkError{Service: "chat", Err: errors.New("connection refused")}),
	}}
	conv := newConversation(t, newMemKV(), chat)

	_, err := conv.Submit(context.Background(), "hi")
	require.True(t, domain.IsNetwork(err))
	st := conv.Snapshot()
	assert.Contains(t, st.Messages[len(st.Messages)-1].Text, "offline")
}

func TestConversation_NewTurnSupersedesOld(t *testing.T) {
	started := make(chan struct{})
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){
		func(ctx context.Context) (model.ChatReply, error) {
			close(started)
			return hang(ctx)
		},
		replyWith("second"),
	}}
	conv := newConversation(t, newMemKV(), chat)
	conv.policy.BaseTimeout = time.Minute

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = conv.Submit(context.Background(), "first")
	}()
	<-started

	reply, err := conv.Submit(context.Background(), "second question")
	require.NoError(t, err)
	wg.Wait()

	assert.ErrorIs(t, firstErr, retry.ErrSuperseded)
	assert.Equal(t, "second", reply.Reply)

	var texts []string
	for _, m := range conv.Snapshot().Messages[1:] {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second question", "second"}, texts)
}

func TestConversation_EmptyInput(t *testing.T) {
	conv := newConversation(t, newMemKV(), &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("x")}})
	_, err := conv.Submit(context.Background(), "  ")
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestConversation_SpeaksReplies(t *testing.T) {
	player := &fakePlayer{finishAll: true}
	tts := &fakeTTS{}
	bridge := NewSpeechBridge(tts, nil, player, retry.Policy{MaxAttempts: 2, BaseTimeout: time.Second}, "onyx", logging.Nop())

	prompts := NewPromptBuilder(nil)
	store := NewSessionStore(newMemKV(), prompts, logging.Nop())
	require.NoError(t, store.Load(context.Background()))
	conv := NewConversation(ConversationDeps{
		Store:        store,
		Chat:         &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("ugh, fine")}},
		Speech:       bridge,
		Prompts:      prompts,
		Policy:       fastChatPolicy(),
		Capabilities: model.Capabilities{CanSynthesizeSpeech: true},
		Log:          logging.Nop(),
	})
	conv.SpeakReplies = true

	var mu sync.Mutex
	var seen []model.VoiceState
	ended := make(chan struct{})
	conv.Voice().OnTransition(func(tr model.Transition) {
		mu.Lock()
		seen = append(seen, tr.To)
		mu.Unlock()
		if tr.Event == model.EventPlaybackEnded {
			close(ended)
		}
	})

	_, err := conv.Submit(context.Background(), "talk to me")
	require.NoError(t, err)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never ended")
	}
	conv.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.VoiceState{model.VoiceProcessing, model.VoiceSpeaking, model.VoiceSpeaking, model.VoiceIdle}, seen)
	require.Len(t, player.all(), 1)
	assert.EqualValues(t, 1, player.all()[0].released.Load())
}

func TestConversation_VoiceTurn(t *testing.T) {
	stt := &fakeSTT{text: "  my name is Ada  "}
	bridge := NewSpeechBridge(&fakeTTS{}, stt, &fakePlayer{finishAll: true}, retry.Policy{MaxAttempts: 1, BaseTimeout: time.Second}, "", logging.Nop())
	prompts := NewPromptBuilder(nil)
	store := NewSessionStore(newMemKV(), prompts, logging.Nop())
	require.NoError(t, store.Load(context.Background()))
	chat := &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("Ada. Noted.")}}
	conv := NewConversation(ConversationDeps{
		Store: store, Chat: chat, Speech: bridge, Prompts: prompts, Policy: fastChatPolicy(),
		Capabilities: model.Capabilities{CanRecognizeSpeech: true},
		Log:          logging.Nop(),
	})
	defer conv.Close()

	capture := newFakeCapture("RIFF....")
	go func() {
		for conv.Voice().State() != model.VoiceListening {
			time.Sleep(time.Millisecond)
		}
		_ = capture.Stop()
	}()

	reply, err := conv.SubmitVoice(context.Background(), capture)
	require.NoError(t, err)
	assert.Equal(t, "Ada. Noted.", reply.Reply)
	assert.Equal(t, "my name is Ada", chat.calls[0].Message)
	assert.Equal(t, "Ada", conv.Snapshot().UserName)
	assert.Equal(t, "RIFF....", string(stt.got))

	_, err = conv.SubmitVoice(context.Background(), capture)
	assert.ErrorIs(t, err, domain.ErrCaptureConsumed)
}

func TestConversation_VoiceNeedsCapability(t *testing.T) {
	conv := newConversation(t, newMemKV(), &scriptedChat{steps: []func(context.Context) (model.ChatReply, error){replyWith("x")}})
	_, err := conv.SubmitVoice(context.Background(), newFakeCapture(""))
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	assert.Equal(t, model.VoiceIdle, conv.Voice().State())
}
