package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/logging"
)

var personaReq = adapter.CompletionRequest{SystemPrompt: "You are CrazeAI.", UserMessage: "I'm Tunde"}

func newOpenAI(t *testing.T, srv *httptest.Server) *OpenAIAdapter {
	t.Helper()
	a, err := NewOpenAIAdapter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, MaxTokens: 150, Temperature: 0.9})
	require.NoError(t, err)
	return a
}

func TestOpenAI_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Ugh, Tunde."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer srv.Close()

	c, err := newOpenAI(t, srv).Complete(context.Background(), personaReq)
	require.NoError(t, err)
	assert.Equal(t, "Ugh, Tunde.", c.Text)
	assert.Equal(t, 15, c.Usage.TotalTokens)

	msgs, _ := body["messages"].([]any)
	require.Len(t, msgs, 2, "exactly one system and one user message")
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.EqualValues(t, 150, body["max_tokens"])
}

func TestOpenAI_ErrorsMapToTaxonomy(t *testing.T) {
	t.Run("non-2xx is a service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":{"message":"upstream melted","type":"server_error"}}`)
		}))
		defer srv.Close()

		_, err := newOpenAI(t, srv).Complete(context.Background(), personaReq)
		var se *domain.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	})

	t.Run("deadline is a timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := newOpenAI(t, srv).Complete(ctx, personaReq)
		assert.True(t, domain.IsTimeout(err), "got %v", err)
	})

	t.Run("unreachable is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		a := newOpenAI(t, srv)
		srv.Close()

		_, err := a.Complete(context.Background(), personaReq)
		assert.True(t, domain.IsNetwork(err), "got %v", err)
	})
}

func TestOpenAI_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "nova", body["voice"])
		assert.Equal(t, "hello", body["input"])
		assert.InDelta(t, 0.92, body["speed"], 1e-9)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	audio, err := newOpenAI(t, srv).Synthesize(context.Background(), adapter.SpeechRequest{Text: "hello", Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, "ID3fake", string(audio.Data))
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "pcm-bytes", string(b))
		assert.Equal(t, "clip.webm", hdr.Filename)
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"my name is Ada"}`)
	}))
	defer srv.Close()

	text, err := newOpenAI(t, srv).Transcribe(context.Background(), adapter.TranscriptionRequest{
		Audio: strings.NewReader("pcm-bytes"), Filename: "clip.webm", ContentType: "audio/webm",
	})
	require.NoError(t, err)
	assert.Equal(t, "my name is Ada", text)
}

func TestAnthropic_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Fine, Tunde."}],"stop_reason":"end_turn",
			"usage":{"input_tokens":20,"output_tokens":4}}`)
	}))
	defer srv.Close()

	a, err := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, MaxTokens: 150})
	require.NoError(t, err)
	c, err := a.Complete(context.Background(), personaReq)
	require.NoError(t, err)
	assert.Equal(t, "Fine, Tunde.", c.Text)
	assert.Equal(t, 24, c.Usage.TotalTokens)

	msgs, _ := body["messages"].([]any)
	assert.Len(t, msgs, 1)
	assert.NotNil(t, body["system"])
}

func TestAnthropic_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	a, _ := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), personaReq)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.NotNil(t, body["systemInstruction"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Ugh. Hi."}]}}],
			"usageMetadata":{"promptTokenCount":9,"candidatesTokenCount":2,"totalTokenCount":11}}`)
	}))
	defer srv.Close()

	g, err := NewGeminiAdapter(context.Background(), "key", srv.URL, "", 150, 0.9)
	require.NoError(t, err)
	c, err := g.Complete(context.Background(), personaReq)
	require.NoError(t, err)
	assert.Equal(t, "Ugh. Hi.", c.Text)
	assert.Equal(t, 11, c.Usage.TotalTokens)
}

type slowAdapter struct{ inFlight, peak atomic.Int32 }

func (s *slowAdapter) Provider() string { return "slow" }
func (s *slowAdapter) Model() string    { return "slow-1" }
func (s *slowAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return adapter.Completion{Text: "ok"}, nil
}

func TestLimitedCompletion_BoundsConcurrency(t *testing.T) {
	inner := &slowAdapter{}
	l := NewLimitedCompletion(inner, 2)

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = l.Complete(context.Background(), personaReq)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, inner.peak.Load(), int32(2))
}

func TestLimitedCompletion_WaitHonorsDeadline(t *testing.T) {
	block := make(chan struct{})
	inner := &blockingAdapter{release: block}
	l := NewLimitedCompletion(inner, 1)
	go func() { _, _ = l.Complete(context.Background(), personaReq) }()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Complete(ctx, personaReq)
	assert.True(t, domain.IsTimeout(err))
	close(block)
}

type blockingAdapter struct{ release chan struct{} }

func (b *blockingAdapter) Provider() string { return "block" }
func (b *blockingAdapter) Model() string    { return "block-1" }
func (b *blockingAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	<-b.release
	return adapter.Completion{Text: "late"}, nil
}

func TestNoop_RespectsContext(t *testing.T) {
	n := NewNoopAIAdapter(logging.Nop())
	c, err := n.Complete(context.Background(), personaReq)
	require.NoError(t, err)
	assert.Contains(t, c.Text, "Tunde")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Complete(ctx, personaReq)
	assert.Error(t, err)
}
