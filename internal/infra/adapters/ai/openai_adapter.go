package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"crazeai/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the ports
var (
	_ adapter.CompletionAdapter = (*OpenAIAdapter)(nil)
	_ adapter.SpeechSynthesizer = (*OpenAIAdapter)(nil)
	_ adapter.Transcriber       = (*OpenAIAdapter)(nil)
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com; set for OpenAI-compatible gateways
	Model       string
	MaxTokens   int
	Temperature float64

	TTSModel string
	Voice    string
	Format   string
	STTModel string
	Speed    float64 // playback speed for synthesized speech
	Language string  // ISO-639-1 hint for transcription

	HTTPClient *http.Client
}

// OpenAIAdapter serves chat completions, speech synthesis and transcription.
type OpenAIAdapter struct {
	client openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 160
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "onyx"
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	if cfg.STTModel == "" {
		cfg.STTModel = "whisper-1"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 0.92
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// deadlines come from ctx; this only guards against a stuck connection
		hc = &http.Client{Timeout: 2 * time.Minute}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }
func (o *OpenAIAdapter) Model() string    { return o.cfg.Model }

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserMessage),
		},
		MaxTokens:   openai.Int(int64(o.cfg.MaxTokens)),
		Temperature: openai.Float(o.cfg.Temperature),
	})
	if err != nil {
		return adapter.Completion{}, classify(ctx, "openai", err, openAIStatus)
	}
	if len(resp.Choices) == 0 {
		return adapter.Completion{}, malformed("openai", "no choices in response")
	}
	return adapter.Completion{
		Text:     resp.Choices[0].Message.Content,
		Provider: o.Provider(),
		Model:    resp.Model,
		Usage: adapter.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (o *OpenAIAdapter) Synthesize(ctx context.Context, req adapter.SpeechRequest) (adapter.Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = o.cfg.Voice
	}
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.cfg.TTSModel),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(o.cfg.Format),
		Speed:          openai.Float(o.cfg.Speed),
	})
	if err != nil {
		return adapter.Audio{}, classify(ctx, "openai-tts", err, openAIStatus)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.Audio{}, classify(ctx, "openai-tts", err, nil)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = audioContentType(o.cfg.Format)
	}
	return adapter.Audio{Data: data, ContentType: ct}, nil
}

func (o *OpenAIAdapter) Transcribe(ctx context.Context, req adapter.TranscriptionRequest) (string, error) {
	name := req.Filename
	if name == "" {
		name = "speech.webm"
	}
	ct := req.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	res, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(req.Audio, name, ct),
		Model:    openai.AudioModel(o.cfg.STTModel),
		Language: openai.String(o.cfg.Language),
	})
	if err != nil {
		return "", classify(ctx, "openai-stt", err, openAIStatus)
	}
	return res.Text, nil
}

func openAIStatus(err error) (int, string, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return 0, "", false
	}
	detail := apiErr.Message
	if detail == "" {
		detail = fmt.Sprintf("http %d", apiErr.StatusCode)
	}
	return apiErr.StatusCode, detail, true
}

func audioContentType(format string) string {
	switch strings.ToLower(format) {
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/L16"
	default:
		return "audio/mpeg"
	}
}
