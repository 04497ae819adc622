package worker

import (
	"context"
	"time"

	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/repository"
)

var _ repository.ExchangeRepository = (*AsyncExchangeLog)(nil)

// AsyncExchangeLog queues Save on the pool; reads and deletes go straight through.
type AsyncExchangeLog struct {
	repository.ExchangeRepository
	pool    *Pool
	timeout time.Duration
}

func NewAsyncExchangeLog(repo repository.ExchangeRepository, pool *Pool, writeTimeout time.Duration) *AsyncExchangeLog {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &AsyncExchangeLog{ExchangeRepository: repo, pool: pool, timeout: writeTimeout}
}

// Save returns once the write is queued. ErrQueueFull means it was dropped.
func (a *AsyncExchangeLog) Save(_ context.Context, ex *model.Exchange) error {
	cp := *ex
	return a.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.ExchangeRepository.Save(ctx, &cp)
	})
}
