package crazeapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", nil)
	require.NoError(t, err)
	return c
}

func TestChat_RoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		var req model.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.ChatRequest{Message: "I'm Tunde", UserName: "Tunde", IsFirstMessage: true}, req)
		_ = json.NewEncoder(w).Encode(model.ChatReply{Reply: "Oh great, Tunde.", DetectedName: "Tunde"})
	})

	reply, err := c.Chat(context.Background(), model.ChatRequest{Message: "I'm Tunde", UserName: "Tunde", IsFirstMessage: true})
	require.NoError(t, err)
	assert.Equal(t, "Oh great, Tunde.", reply.Reply)
	assert.Equal(t, "Tunde", reply.DetectedName)
}

func TestChat_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"408 is a timeout", http.StatusRequestTimeout, `{"error":"Request timeout"}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsTimeout(err))
		}},
		{"500 is a service error", http.StatusInternalServerError, `{"error":"Something went wrong with the AI service","details":"boom"}`, func(t *testing.T, err error) {
			var se *domain.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 500, se.StatusCode)
			assert.Contains(t, se.Detail, "boom")
		}},
		{"400 is a validation error", http.StatusBadRequest, `{"error":"Message is required"}`, func(t *testing.T, err error) {
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Reason, "Message is required")
		}},
		{"429 is rate limited", http.StatusTooManyRequests, `{"error":"Too many requests"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrRateLimited)
		}},
		{"non-json body still surfaces", http.StatusBadGateway, `upstream down`, func(t *testing.T, err error) {
			var se *domain.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "upstream down", se.Detail)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.Chat(context.Background(), model.ChatRequest{Message: "hi"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestChat_DeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Chat(ctx, model.ChatRequest{Message: "hi"})
	var te *domain.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "chat", te.Op)
}

func TestChat_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), model.ChatRequest{Message: "hi"})
	assert.True(t, domain.IsNetwork(err), "got %v", err)
}

func TestChat_EmptyReplyIsServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"reply":"  "}`)
	})
	_, err := c.Chat(context.Background(), model.ChatRequest{Message: "hi"})
	assert.True(t, domain.IsService(err))
}

func TestSynthesize_ForwardsRetryAttempt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		assert.EqualValues(t, 1, body["retryAttempt"])
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3"))
	})
	audio, err := c.Synthesize(context.Background(), adapter.SpeechRequest{Text: "hello", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, []byte("ID3"), audio.Data)
}

func TestTranscribe_UploadsFileField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "clip.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(b))
		_, _ = io.WriteString(w, `{"text":"my name is Ada"}`)
	})
	text, err := c.Transcribe(context.Background(), adapter.TranscriptionRequest{Audio: strings.NewReader("RIFF"), Filename: "clip.wav"})
	require.NoError(t, err)
	assert.Equal(t, "my name is Ada", text)

	_, err = c.Transcribe(context.Background(), adapter.TranscriptionRequest{})
	assert.ErrorIs(t, err, domain.ErrNoAudio)
}

func TestSessionCookieIsKept(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("craze_session"); err == nil {
			mu.Lock()
			seen = append(seen, ck.Value)
			mu.Unlock()
		} else {
			http.SetCookie(w, &http.Cookie{Name: "craze_session", Value: "tok", Path: "/"})
		}
		switch r.URL.Path {
		case "/capabilities":
			_, _ = io.WriteString(w, `{"canRecognizeSpeech":true,"canSynthesizeSpeech":false}`)
		case "/session":
			_, _ = io.WriteString(w, `{"sessionId":"s-1","userName":"Ada"}`)
		case "/session/name":
			w.WriteHeader(http.StatusNoContent)
		}
	})

	caps, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	assert.True(t, caps.CanRecognizeSpeech)

	sid, name, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-1", sid)
	assert.Equal(t, "Ada", name)

	require.NoError(t, c.ForgetName(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tok", "tok"}, seen)
}

func TestCanceledContextReportsCause(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	sentinel := errors.New("newer turn")
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel(sentinel)
	}()
	_, err := c.Chat(ctx, model.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, sentinel)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("localhost", nil)
	assert.Error(t, err)
}
