package store

import (
	"context"
	"errors"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, st *domain.SessionState) error {
	flags := flagStrings(st.BoundaryFlags)
	return s.db.QueryRow(ctx,
		`INSERT INTO sessions (tenant_id, interaction_count, trust_ema, trajectory, cumulative_debt, positive_streak, stage, boundary_flags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		st.TenantID, st.InteractionCount, st.TrustEMA, st.Trajectory, st.CumulativeDebt, st.PositiveStreak, st.Stage, flags,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
}

func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.SessionState, error) {
	st := &domain.SessionState{}
	var stage string
	var flags []string
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, interaction_count, trust_ema, trajectory, cumulative_debt, positive_streak, stage, boundary_flags, created_at, updated_at
		 FROM sessions WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&st.ID, &st.TenantID, &st.InteractionCount, &st.TrustEMA, &st.Trajectory, &st.CumulativeDebt, &st.PositiveStreak, &stage, &flags, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	st.Stage = domain.SessionStage(stage)
	for _, f := range flags {
		st.BoundaryFlags = append(st.BoundaryFlags, domain.BoundaryFlag(f))
	}
	return st, nil
}

func (s *SessionStore) Update(ctx context.Context, st *domain.SessionState) error {
	flags := flagStrings(st.BoundaryFlags)
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions
		 SET interaction_count = $1, trust_ema = $2, trajectory = $3, cumulative_debt = $4,
		     positive_streak = $5, stage = $6, boundary_flags = $7, updated_at = NOW()
		 WHERE id = $8 AND tenant_id = $9`,
		st.InteractionCount, st.TrustEMA, st.Trajectory, st.CumulativeDebt,
		st.PositiveStreak, st.Stage, flags, st.ID, st.TenantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func flagStrings(flags []domain.BoundaryFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
