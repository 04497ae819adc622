package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/repository"
)

var _ repository.ExchangeRepository = (*ExchangeRepo)(nil)

// querier is the subset of *pgxpool.Pool the repo needs; pgx.Tx satisfies it too.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type ExchangeRepo struct {
	db querier
}

func NewExchangeRepo(db querier) *ExchangeRepo {
	return &ExchangeRepo{db: db}
}

func (r *ExchangeRepo) Save(ctx context.Context, ex *model.Exchange) error {
	if ex == nil || ex.ID == "" || ex.SessionID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO exchanges (id, session_id, message, reply, detected_name, provider, model, status, latency_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10,NOW()))
ON CONFLICT (id) DO NOTHING;`
	var created *time.Time
	if !ex.CreatedAt.IsZero() {
		created = &ex.CreatedAt
	}
	_, err := r.db.Exec(ctx, q, ex.ID, ex.SessionID, ex.Message, ex.Reply, ex.DetectedName,
		ex.Provider, ex.Model, string(ex.Status), ex.LatencyMs, created)
	if err != nil {
		return fmt.Errorf("save exchange: %w", describe(err))
	}
	return nil
}

// ListBySession returns the newest exchanges first.
func (r *ExchangeRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Exchange, error) {
	const q = `
SELECT id, session_id, message, reply, detected_name, provider, model, status, latency_ms, created_at
FROM exchanges
WHERE session_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", describe(err))
	}
	defer rows.Close()

	var out []*model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var status string
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Message, &ex.Reply, &ex.DetectedName,
			&ex.Provider, &ex.Model, &status, &ex.LatencyMs, &ex.CreatedAt); err != nil {
			return nil, err
		}
		ex.Status = model.ExchangeStatus(status)
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (r *ExchangeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM exchanges WHERE created_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete exchanges: %w", describe(err))
	}
	return tag.RowsAffected(), nil
}

// describe adds the SQLSTATE to server-side errors so logs show what went wrong.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s (sqlstate %s): %w", pgErr.Message, pgErr.Code, err)
	}
	return err
}
