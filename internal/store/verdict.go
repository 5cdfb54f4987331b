package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VerdictStore struct {
	db *pgxpool.Pool
}

func NewVerdictStore(db *pgxpool.Pool) *VerdictStore {
	return &VerdictStore{db: db}
}

func (s *VerdictStore) Create(ctx context.Context, v *domain.ReciprocityVerdict) error {
	scores, err := json.Marshal(v.LayerScores)
	if err != nil {
		return fmt.Errorf("marshal layer scores: %w", err)
	}
	violations := make([]string, len(v.Violations))
	for i, k := range v.Violations {
		violations[i] = string(k)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO verdicts (id, tenant_id, session_id, balance, exchange_class, violations, layer_scores, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.TenantID, v.SessionID, v.Balance, v.Class, violations, scores, v.CreatedAt,
	)
	return err
}

func (s *VerdictStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.ReciprocityVerdict, error) {
	v := &domain.ReciprocityVerdict{}
	var class string
	var violations []string
	var scores []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, session_id, balance, exchange_class, violations, layer_scores, created_at
		 FROM verdicts WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&v.ID, &v.TenantID, &v.SessionID, &v.Balance, &class, &violations, &scores, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.Class = domain.ExchangeClass(class)
	for _, k := range violations {
		v.Violations = append(v.Violations, domain.ViolationKind(k))
	}
	if err := json.Unmarshal(scores, &v.LayerScores); err != nil {
		return nil, fmt.Errorf("unmarshal layer scores: %w", err)
	}
	return v, nil
}

func (s *VerdictStore) ListBySession(ctx context.Context, sessionID uuid.UUID, tenantID uuid.UUID, limit int) ([]domain.ReciprocityVerdict, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, session_id, balance, exchange_class, violations, layer_scores, created_at
		 FROM verdicts WHERE session_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		sessionID, tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []domain.ReciprocityVerdict
	for rows.Next() {
		var v domain.ReciprocityVerdict
		var class string
		var violations []string
		var scores []byte
		if err := rows.Scan(&v.ID, &v.TenantID, &v.SessionID, &v.Balance, &class, &violations, &scores, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Class = domain.ExchangeClass(class)
		for _, k := range violations {
			v.Violations = append(v.Violations, domain.ViolationKind(k))
		}
		if err := json.Unmarshal(scores, &v.LayerScores); err != nil {
			return nil, fmt.Errorf("unmarshal layer scores: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
