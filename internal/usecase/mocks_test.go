package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
)

// ---- Fakes ----

type fakeCompletion struct {
	mu       sync.Mutex
	requests []adapter.CompletionRequest
	reply    string
	err      error
	block    bool
}

func (f *fakeCompletion) Provider() string { return "fake" }
func (f *fakeCompletion) Model() string    { return "fake-1" }

func (f *fakeCompletion) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply, err, block := f.reply, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return adapter.Completion{}, ctx.Err()
	}
	if err != nil {
		return adapter.Completion{}, err
	}
	return adapter.Completion{Text: reply, Provider: "fake", Model: "fake-1"}, nil
}

func (f *fakeCompletion) lastRequest() adapter.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return adapter.CompletionRequest{}
	}
	return f.requests[len(f.requests)-1]
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	writes int
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Read(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Write(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.writes++
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type memExchanges struct {
	mu   sync.Mutex
	rows []*model.Exchange
}

func (m *memExchanges) Save(ctx context.Context, ex *model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ex)
	return nil
}

func (m *memExchanges) ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Exchange
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].SessionID == sessionID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memExchanges) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// scriptedChat answers ChatService calls from a list of step functions; the last one repeats.
type scriptedChat struct {
	mu    sync.Mutex
	calls []model.ChatRequest
	steps []func(ctx context.Context) (model.ChatReply, error)
}

func (s *scriptedChat) Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error) {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, req)
	step := s.steps[len(s.steps)-1]
	if n < len(s.steps) {
		step = s.steps[n]
	}
	s.mu.Unlock()
	return step(ctx)
}

func (s *scriptedChat) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func replyWith(text string) func(context.Context) (model.ChatReply, error) {
	return func(context.Context) (model.ChatReply, error) { return model.ChatReply{Reply: text}, nil }
}

func failWith(err error) func(context.Context) (model.ChatReply, error) {
	return func(context.Context) (model.ChatReply, error) { return model.ChatReply{}, err }
}

func hang(ctx context.Context) (model.ChatReply, error) {
	<-ctx.Done()
	return model.ChatReply{}, ctx.Err()
}

type fakeTTS struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error) {
	f.calls.Add(1)
	if f.err != nil {
		return adapter.Audio{}, f.err
	}
	return adapter.Audio{Data: []byte("ID3" + req.Text), ContentType: "audio/mpeg"}, nil
}

type fakeSTT struct {
	text string
	got  []byte
}

func (f *fakeSTT) Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error) {
	b, err := io.ReadAll(req.Audio)
	if err != nil {
		return "", err
	}
	f.got = b
	return f.text, nil
}

// fakeHandle plays until stopped or until finish is closed.
type fakeHandle struct {
	stopped  atomic.Int32
	released atomic.Int32
	stopCh   chan struct{}
	finish   chan struct{}
	once     sync.Once
}

func (h *fakeHandle) Play(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopCh:
		return nil
	case <-h.finish:
		return nil
	}
}

func (h *fakeHandle) Stop() {
	h.stopped.Add(1)
	h.once.Do(func() { close(h.stopCh) })
}

func (h *fakeHandle) Release() error {
	if h.released.Add(1) > 1 {
		return errors.New("released twice")
	}
	return nil
}

type fakePlayer struct {
	mu      sync.Mutex
	handles []*fakeHandle
	// finishAll makes every clip end immediately
	finishAll bool
}

func (p *fakePlayer) Load(a adapter.Audio) (adapter.AudioHandle, error) {
	h := &fakeHandle{stopCh: make(chan struct{}), finish: make(chan struct{})}
	if p.finishAll {
		close(h.finish)
	}
	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()
	return h, nil
}

func (p *fakePlayer) all() []*fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeHandle(nil), p.handles...)
}

// fakeCapture is a one-shot capture that ends on Stop.
type fakeCapture struct {
	data    []byte
	started atomic.Int32
	done    chan struct{}
	once     sync.Once
	closed   atomic.Int32
	startErr error
}

func newFakeCapture(data string) *fakeCapture {
	return &fakeCapture{data: []byte(data), done: make(chan struct{})}
}

func (c *fakeCapture) Start(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	if c.started.Add(1) > 1 {
		return domain.ErrCaptureConsumed
	}
	return nil
}

func (c *fakeCapture) Stop() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeCapture) Done() <-chan struct{} { return c.done }

func (c *fakeCapture) Recording() (adapter.TranscriptionRequest, error) {
	return adapter.TranscriptionRequest{Audio: bytes.NewReader(c.data), Filename: "speech.webm", ContentType: "audio/webm"}, nil
}

func (c *fakeCapture) Close() error {
	c.closed.Add(1)
	return nil
}
