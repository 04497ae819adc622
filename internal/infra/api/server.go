// Package api is the HTTP surface: /chat, /text-to-speech, /speech-to-text and the
// session/capability endpoints, all answering errors as {error, details}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
	"crazeai/internal/infra/logging"
)

// ChatService is satisfied by *usecase.ChatUseCase.
type ChatService interface {
	Reply(ctx context.Context, req model.ChatRequest) (model.ChatReply, error)
	History(ctx context.Context, sessionID string, limit int) ([]*model.Exchange, error)
}

// SpeechService is satisfied by *usecase.SpeechUseCase.
type SpeechService interface {
	Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error)
	Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error)
	Capabilities(ctx context.Context) (model.Capabilities, error)
}

// NameStore is satisfied by *usecase.NameMirror.
type NameStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Forget(ctx context.Context, sessionID string) error
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	RateLimit      int
	RateWindow     time.Duration
}

type Server struct {
	chat     ChatService
	speech   SpeechService
	names    NameStore
	sessions *SessionManager
	limiter  Limiter
	opts     Options
	log      *zerolog.Logger
}

// NewServer wires the handlers. limiter may be nil (no rate limiting).
func NewServer(chat ChatService, speech SpeechService, names NameStore, sessions *SessionManager, limiter Limiter, opts Options, log *zerolog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	return &Server{chat: chat, speech: speech, names: names, sessions: sessions, limiter: limiter, opts: opts, log: log}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(CORS(s.opts.AllowedOrigins))

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware())
		r.Use(Timeout(s.opts.RequestTimeout))

		limited := func(route string, h http.HandlerFunc) http.Handler {
			return RateLimit(s.limiter, route, s.opts.RateLimit, s.opts.RateWindow, s.log)(h)
		}
		r.Method(http.MethodPost, "/chat", limited("chat", s.handleChat))
		r.Method(http.MethodPost, "/text-to-speech", limited("tts", s.handleTextToSpeech))
		r.Method(http.MethodPost, "/speech-to-text", limited("stt", s.handleSpeechToText))

		r.Get("/capabilities", s.handleCapabilities)
		r.Get("/session", s.handleSession)
		r.Delete("/session/name", s.handleForgetName)
		r.Get("/session/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	reply, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		fail(w, err, "Something went wrong with the AI service")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type speechBody struct {
	Text         string `json:"text"`
	Voice        string `json:"voice,omitempty"`
	RetryAttempt int    `json:"retryAttempt,omitempty"`
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var body speechBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	audio, err := s.speech.Synthesize(r.Context(), adapter.SpeechRequest{
		Text:    body.Text,
		Voice:   body.Voice,
		Attempt: body.RetryAttempt,
	})
	if err != nil {
		fail(w, err, "Failed to generate speech")
		return
	}

	h := w.Header()
	h.Set("Content-Type", audio.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(audio.Data)))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Surrogate-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func (s *Server) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Audio file too large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "No audio file provided", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := formAudio(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided", "")
		return
	}
	defer file.Close()

	text, err := s.speech.Transcribe(r.Context(), adapter.TranscriptionRequest{
		Audio:       file,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
	})
	if err != nil {
		if domain.IsTimeout(err) || errors.Is(err, domain.ErrUnsupported) {
			fail(w, err, "")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to transcribe audio", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// formAudio accepts the upload under "file" or "audio".
func formAudio(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	f, h, err := r.FormFile("file")
	if err == nil {
		return f, h, nil
	}
	return r.FormFile("audio")
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.speech.Capabilities(r.Context())
	if err != nil {
		fail(w, err, "Capability check failed")
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

type sessionBody struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sid := logging.SessIDFrom(r.Context())
	name, err := s.names.Get(r.Context(), sid)
	if err != nil {
		fail(w, err, "Session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionBody{SessionID: sid, UserName: name})
}

func (s *Server) handleForgetName(w http.ResponseWriter, r *http.Request) {
	if err := s.names.Forget(r.Context(), logging.SessIDFrom(r.Context())); err != nil {
		fail(w, err, "Could not clear name")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exchangeBody struct {
	ID           string    `json:"id"`
	Message      string    `json:"message"`
	Reply        string    `json:"reply,omitempty"`
	DetectedName string    `json:"detectedName,omitempty"`
	Status       string    `json:"status"`
	LatencyMs    int       `json:"latencyMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	exs, err := s.chat.History(r.Context(), logging.SessIDFrom(r.Context()), limit)
	if err != nil {
		fail(w, err, "History unavailable")
		return
	}
	items := make([]exchangeBody, 0, len(exs))
	for _, ex := range exs {
		items = append(items, exchangeBody{
			ID:           ex.ID,
			Message:      ex.Message,
			Reply:        ex.Reply,
			DetectedName: ex.DetectedName,
			Status:       string(ex.Status),
			LatencyMs:    ex.LatencyMs,
			CreatedAt:    ex.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
