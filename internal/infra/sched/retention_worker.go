package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/ports/repository"
	"crazeai/internal/infra/metrics"
	"crazeai/internal/infra/redis"
)

const retentionLockKey = "lock:exchange-retention"

// RetentionWorker periodically deletes exchange-log rows older than the retention
// window. With a locker, only one replica prunes per tick.
type RetentionWorker struct {
	interval  time.Duration
	retention time.Duration
	repo      repository.ExchangeRepository
	locker    redis.Locker
	onTick    func()
	now       func() time.Time
	log       *zerolog.Logger
}

type RetentionOption func(*RetentionWorker)

// WithLocker coordinates replicas through a shared lock.
func WithLocker(l redis.Locker) RetentionOption {
	return func(w *RetentionWorker) { w.locker = l }
}

// WithTickHook runs fn on every tick, before pruning (pool stats, for example).
func WithTickHook(fn func()) RetentionOption {
	return func(w *RetentionWorker) { w.onTick = fn }
}

func NewRetentionWorker(interval, retention time.Duration, repo repository.ExchangeRepository, logger *zerolog.Logger, opts ...RetentionOption) *RetentionWorker {
	l := logger.With().Str("component", "RetentionWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	w := &RetentionWorker{
		interval:  interval,
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       &l,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("retention", w.retention).Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			if w.onTick != nil {
				w.onTick()
			}
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("retention worker error")
			}
		}
	}
}

// RunOnce prunes once and reports how many rows went.
func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, retentionLockKey, w.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			metrics.ObserveRetentionRun("skipped", 0)
			return 0, nil
		}
		if err != nil {
			metrics.ObserveRetentionRun("failed", 0)
			return 0, err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), retentionLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("retention unlock failed")
			}
		}()
	}

	cutoff := w.now().Add(-w.retention)
	n, err := w.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		metrics.ObserveRetentionRun("failed", 0)
		return 0, err
	}
	metrics.ObserveRetentionRun("ok", n)
	if n > 0 {
		w.log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("old exchanges deleted")
	}
	return n, nil
}
