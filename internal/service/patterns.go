package service

import (
	"context"
	"errors"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPatternTopK = 10

var ErrPatternQueryEmpty = errors.New("pattern query text is required")

// PatternService is the cross-session pattern library: manipulation shapes
// a fire circle agreed on are embedded and stored, so later evaluations
// can ask whether a similar shape has been certified before.
type PatternService struct {
	store    domain.PatternStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewPatternService(store domain.PatternStore, embedder domain.EmbeddingClient, logger *zap.Logger) *PatternService {
	return &PatternService{store: store, embedder: embedder, logger: logger}
}

// RecordAll embeds and stores every pattern a fire circle run certified.
// Storage failures on individual patterns are logged and skipped: the
// library is an archive, not part of the verdict path.
func (s *PatternService) RecordAll(ctx context.Context, tenantID uuid.UUID, patterns []domain.PatternObservation) {
	for i := range patterns {
		p := patterns[i]
		vec, err := s.embedder.Embed(ctx, p.Description)
		if err != nil {
			s.logger.Warn("pattern embedding failed",
				zap.String("pattern", p.PatternType), zap.Error(err))
			continue
		}
		p.Embedding = vec

		if err := s.store.Create(ctx, tenantID, &p); err != nil {
			s.logger.Warn("pattern store failed",
				zap.String("pattern", p.PatternType), zap.Error(err))
		}
	}
}

// FindSimilar returns stored patterns nearest to the query description.
func (s *PatternService) FindSimilar(ctx context.Context, tenantID uuid.UUID, query string, topK int) ([]domain.PatternWithScore, error) {
	if query == "" {
		return nil, ErrPatternQueryEmpty
	}
	if topK <= 0 {
		topK = DefaultPatternTopK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.FindSimilar(ctx, tenantID, vec, topK)
}
