package adapter

import "context"

// CompletionRequest is the single system+user exchange sent per turn.
// Prior turns are never resent.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the provider reply.
type Completion struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

// CompletionAdapter is the port for the hosted LLM. Implementations must honor ctx
// cancellation and map failures into domain.TimeoutError, domain.NetworkError or
// domain.ServiceError.
type CompletionAdapter interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
