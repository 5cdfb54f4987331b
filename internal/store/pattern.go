package store

import (
	"context"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type PatternStore struct {
	db *pgxpool.Pool
}

func NewPatternStore(db *pgxpool.Pool) *PatternStore {
	return &PatternStore{db: db}
}

func (s *PatternStore) Create(ctx context.Context, tenantID uuid.UUID, p *domain.PatternObservation) error {
	var embedding *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		embedding = &v
	}

	lineages := make([]string, len(p.LineagesAgree))
	for i, l := range p.LineagesAgree {
		lineages[i] = string(l)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO patterns (tenant_id, pattern_type, description, models_observing, lineages_agree, agreement_ratio, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenantID, p.PatternType, p.Description, p.ModelsObserving, lineages, p.AgreementRatio, embedding,
	)
	return err
}

func (s *PatternStore) FindSimilar(ctx context.Context, tenantID uuid.UUID, embedding []float32, topK int) ([]domain.PatternWithScore, error) {
	rows, err := s.db.Query(ctx,
		`SELECT pattern_type, description, models_observing, lineages_agree, agreement_ratio,
		        1 - (embedding <=> $1) AS score
		 FROM patterns
		 WHERE tenant_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), tenantID, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []domain.PatternWithScore
	for rows.Next() {
		var p domain.PatternWithScore
		var lineages []string
		if err := rows.Scan(&p.PatternType, &p.Description, &p.ModelsObserving, &lineages, &p.AgreementRatio, &p.Score); err != nil {
			return nil, err
		}
		for _, l := range lineages {
			p.LineagesAgree = append(p.LineagesAgree, domain.ProviderLineage(l))
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
