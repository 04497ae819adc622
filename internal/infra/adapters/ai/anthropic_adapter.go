package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"crazeai/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*AnthropicAdapter)(nil)

type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// AnthropicAdapter is a thin wrapper around the official anthropic-sdk-go client.
type AnthropicAdapter struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 160
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // retries belong to the caller
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &AnthropicAdapter{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }
func (a *AnthropicAdapter) Model() string    { return a.cfg.Model }

func (a *AnthropicAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Temperature: anthropic.Float(a.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)),
		},
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return adapter.Completion{}, classify(ctx, "anthropic", err, anthropicStatus)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return adapter.Completion{}, malformed("anthropic", "no text content (stop reason %s)", msg.StopReason)
	}
	return adapter.Completion{
		Text:     sb.String(),
		Provider: a.Provider(),
		Model:    string(msg.Model),
		Usage: adapter.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func anthropicStatus(err error) (int, string, bool) {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return 0, "", false
	}
	return apiErr.StatusCode, fmt.Sprintf("http %d: %s", apiErr.StatusCode, apiErr.Error()), true
}
