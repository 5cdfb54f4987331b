package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 24 * time.Hour

var ErrNoJudges = errors.New("at least one judge is required")

// EvaluatorService runs the full pipeline for one exchange: judge fan-out
// per layer, ensemble merge, trust field, balance aggregation, and verdict
// persistence. Judge calls are the only I/O; all (layer x judge) calls
// within an evaluation are independent and run concurrently.
type EvaluatorService struct {
	judges   []domain.JudgeClient
	strategy domain.EnsembleStrategy
	trust    *TrustFieldCalculator
	balance  *BalanceAggregator
	verdicts domain.VerdictStore
	logger   *zap.Logger

	// cache is optional; nil disables memoization.
	cache    domain.EvaluationCache
	cacheTTL time.Duration

	// fireCircle is optional; when set together with participants,
	// borderline verdicts are escalated to a full dialogue run.
	fireCircle   *FireCircleService
	participants []domain.DialogueParticipant
}

func NewEvaluatorService(judges []domain.JudgeClient, strategy domain.EnsembleStrategy, trust *TrustFieldCalculator, balance *BalanceAggregator, verdicts domain.VerdictStore, logger *zap.Logger) (*EvaluatorService, error) {
	if len(judges) == 0 {
		return nil, ErrNoJudges
	}
	if !domain.ValidEnsembleStrategy(string(strategy)) {
		return nil, errors.New("invalid ensemble strategy: " + string(strategy))
	}
	return &EvaluatorService{
		judges:   judges,
		strategy: strategy,
		trust:    trust,
		balance:  balance,
		verdicts: verdicts,
		logger:   logger,
		cacheTTL: DefaultCacheTTL,
	}, nil
}

// SetCache enables judge-call memoization.
func (s *EvaluatorService) SetCache(cache domain.EvaluationCache, ttl time.Duration) {
	s.cache = cache
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// SetEscalation enables fire-circle escalation of borderline verdicts.
func (s *EvaluatorService) SetEscalation(fc *FireCircleService, participants []domain.DialogueParticipant) {
	s.fireCircle = fc
	s.participants = participants
}

type layerCall struct {
	layer int
	judge int
}

// Evaluate scores every layer with every configured judge, merges the
// ensembles, and produces the verdict. Fail-fast: any judge failure fails
// the evaluation; a fabricated neutral score feeding the circuit breakers
// would be worse than an explicit error.
func (s *EvaluatorService) Evaluate(ctx context.Context, tenantID uuid.UUID, ex *domain.Exchange) (*domain.ReciprocityVerdict, error) {
	return s.evaluate(ctx, tenantID, nil, ex)
}

// EvaluateInSession is Evaluate with the verdict bound to a session, so it
// is persisted as part of that session's history.
func (s *EvaluatorService) EvaluateInSession(ctx context.Context, tenantID, sessionID uuid.UUID, ex *domain.Exchange) (*domain.ReciprocityVerdict, error) {
	return s.evaluate(ctx, tenantID, &sessionID, ex)
}

func (s *EvaluatorService) evaluate(ctx context.Context, tenantID uuid.UUID, sessionID *uuid.UUID, ex *domain.Exchange) (*domain.ReciprocityVerdict, error) {
	if len(ex.Layers) == 0 {
		return nil, domain.ErrEmptyExchange
	}

	results := make([]EnsembleResult, len(ex.Layers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for li := range ex.Layers {
		for ji := range s.judges {
			wg.Add(1)
			go func(call layerCall) {
				defer wg.Done()
				eval, err := s.evaluateOne(ctx, ex, call)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					var jerr *domain.JudgeError
					if !errors.As(err, &jerr) {
						jerr = &domain.JudgeError{ModelID: s.judges[call.judge].ModelID(), LayerIndex: call.layer, Err: err}
					}
					results[call.layer].Failures = append(results[call.layer].Failures, jerr)
					return
				}
				results[call.layer].Evaluations = append(results[call.layer].Evaluations, *eval)
			}(layerCall{layer: li, judge: ji})
		}
	}
	wg.Wait()

	for li := range ex.Layers {
		// Stable order keeps the merged rationale deterministic across
		// runs; the merge itself is order-independent.
		sort.Slice(results[li].Evaluations, func(i, j int) bool {
			return results[li].Evaluations[i].ModelID < results[li].Evaluations[j].ModelID
		})

		merged, err := MergeEnsemble(s.strategy, results[li])
		if err != nil {
			if len(s.judges) == 1 && len(results[li].Failures) == 1 {
				// A solo judge's failure is a judge failure, not an
				// ensemble failure.
				return nil, results[li].Failures[0]
			}
			return nil, err
		}
		ex.Layers[li].SetEvaluation(merged.Truth, merged.Indeterminacy, merged.Falsehood, merged.Flags, merged.Rationale)
	}

	field := s.trust.Compute(ex)
	verdict := s.balance.Aggregate(ex, field)

	if s.fireCircle != nil && verdict.Class == domain.ClassBorderline {
		escalated, err := s.escalate(ctx, ex, field)
		if err != nil {
			return nil, err
		}
		verdict = escalated
	}

	verdict.TenantID = tenantID
	verdict.SessionID = sessionID

	if s.verdicts != nil {
		if err := s.verdicts.Create(ctx, verdict); err != nil {
			return nil, err
		}
	}

	s.logger.Info("exchange evaluated",
		zap.String("verdict_id", verdict.ID.String()),
		zap.Float64("balance", verdict.Balance),
		zap.String("class", string(verdict.Class)))

	return verdict, nil
}

// escalate convenes the fire circle on a borderline exchange. The
// consensus falsehood can only tighten the verdict, never relax it.
func (s *EvaluatorService) escalate(ctx context.Context, ex *domain.Exchange, field domain.TrustField) (*domain.ReciprocityVerdict, error) {
	s.logger.Info("escalating borderline exchange to fire circle")

	res, err := s.fireCircle.Run(ctx, ex, s.participants)
	if err != nil {
		return nil, err
	}

	fMax := ex.MaxFalsehood()
	if res.ConsensusFalsehood > fMax {
		fMax = res.ConsensusFalsehood
	}
	return s.balance.AggregateWithFalsehood(ex, field, fMax), nil
}

// evaluateOne runs one (layer, judge) call through the cache.
func (s *EvaluatorService) evaluateOne(ctx context.Context, ex *domain.Exchange, call layerCall) (*domain.JudgeEvaluation, error) {
	j := s.judges[call.judge]
	layer := &ex.Layers[call.layer]
	req := domain.EvaluationRequest{
		LayerIndex: call.layer,
		Content:    layer.Content,
		Context:    ex.ContextBefore(call.layer),
		Variant:    layer.Provenance.VariantFor(),
	}

	key := cacheKey(req, j.ModelID())
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key); err == nil && hit != nil {
			hit.LayerIndex = call.layer
			return hit, nil
		} else if err != nil {
			// Cache trouble degrades to a live call; it never fabricates
			// or blocks an evaluation.
			s.logger.Warn("evaluation cache read failed", zap.Error(err))
		}
	}

	eval, err := j.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, eval, s.cacheTTL); err != nil {
			s.logger.Warn("evaluation cache write failed", zap.Error(err))
		}
	}
	return eval, nil
}

// cacheKey is the stable hash of everything that determines a judge
// response: content, context, rubric variant, and model identity.
func cacheKey(req domain.EvaluationRequest, modelID string) string {
	h := sha256.New()
	h.Write([]byte(req.Content))
	h.Write([]byte{0})
	h.Write([]byte(req.Context))
	h.Write([]byte{0})
	h.Write([]byte(req.Variant))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	return hex.EncodeToString(h.Sum(nil))
}
