package adapter

import (
	"context"

	"crazeai/internal/domain/model"
)

// ChatService is the client's view of POST /chat.
type ChatService interface {
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatReply, error)
}

// CapabilitySource reports what speech features the backend can serve.
type CapabilitySource interface {
	Capabilities(ctx context.Context) (model.Capabilities, error)
}
