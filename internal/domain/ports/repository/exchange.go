package repository

import (
	"context"
	"time"

	"crazeai/internal/domain/model"
)

// ExchangeRepository stores the /chat audit log.
type ExchangeRepository interface {
	Save(ctx context.Context, ex *model.Exchange) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Exchange, error)
	// DeleteOlderThan removes exchanges created before cutoff and returns how many went.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
