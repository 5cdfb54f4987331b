package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

// SessionStore owns SessionState persistence. The accumulator mutates
// state it loads from here and saves it back under its own per-session
// serialization; the store itself only needs to be safe for concurrent use
// across different sessions.
type SessionStore interface {
	Create(ctx context.Context, s *SessionState) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*SessionState, error)
	Update(ctx context.Context, s *SessionState) error
}

type VerdictStore interface {
	Create(ctx context.Context, v *ReciprocityVerdict) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*ReciprocityVerdict, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, tenantID uuid.UUID, limit int) ([]ReciprocityVerdict, error)
}

// PatternWithScore pairs a stored pattern with its similarity to a query
// embedding.
type PatternWithScore struct {
	PatternObservation
	Score float32 `json:"score"`
}

type PatternStore interface {
	Create(ctx context.Context, tenantID uuid.UUID, p *PatternObservation) error
	FindSimilar(ctx context.Context, tenantID uuid.UUID, embedding []float32, topK int) ([]PatternWithScore, error)
}

// EvaluationCache memoizes judge calls keyed by a stable hash of
// (content, context, variant, model). Backend-agnostic; implementations
// must be safe for concurrent reads of the same key and must never serve a
// half-written entry.
type EvaluationCache interface {
	Get(ctx context.Context, key string) (*JudgeEvaluation, error)
	Put(ctx context.Context, key string, eval *JudgeEvaluation, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int64, error)
}
