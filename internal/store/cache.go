package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EvalCacheStore memoizes judge evaluations keyed by the caller's stable
// hash. Writes are single-statement upserts, so a concurrent reader sees
// either the previous complete row or the new complete row, never a
// half-written entry.
type EvalCacheStore struct {
	db *pgxpool.Pool
}

func NewEvalCacheStore(db *pgxpool.Pool) *EvalCacheStore {
	return &EvalCacheStore{db: db}
}

func (s *EvalCacheStore) Get(ctx context.Context, key string) (*domain.JudgeEvaluation, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM evaluation_cache
		 WHERE cache_key = $1 AND expires_at > NOW()`,
		key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	eval := &domain.JudgeEvaluation{}
	if err := json.Unmarshal(payload, eval); err != nil {
		return nil, fmt.Errorf("unmarshal cached evaluation: %w", err)
	}
	return eval, nil
}

func (s *EvalCacheStore) Put(ctx context.Context, key string, eval *domain.JudgeEvaluation, ttl time.Duration) error {
	payload, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshal evaluation for cache: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO evaluation_cache (cache_key, payload, expires_at)
		 VALUES ($1, $2, NOW() + $3)
		 ON CONFLICT (cache_key) DO UPDATE
		 SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		key, payload, ttl,
	)
	return err
}

func (s *EvalCacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM evaluation_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
