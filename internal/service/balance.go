package service

import (
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultSevereFalsehood is the f_max above which the falsehood
	// penalty becomes near non-compensable.
	DefaultSevereFalsehood = 0.6
	// DefaultManipulativeFalsehood is the f_max above which the exchange
	// is classed manipulative outright.
	DefaultManipulativeFalsehood = 0.8
	// DefaultReciprocalFloor is the minimum balance for a reciprocal
	// classification.
	DefaultReciprocalFloor = 0.3
	// DefaultBorderlineIndeterminacy is the mean indeterminacy above
	// which a weakly-positive balance reads as borderline.
	DefaultBorderlineIndeterminacy = 0.5

	severePenalty      = 0.8
	graduatedSlope     = 0.5
	circuitBreakerBias = -1.0
)

// BalanceAggregator folds per-layer triples and the trust field into a
// single balance and classification.
type BalanceAggregator struct {
	logger *zap.Logger

	SevereFalsehood         float64
	ManipulativeFalsehood   float64
	ReciprocalFloor         float64
	BorderlineIndeterminacy float64
}

func NewBalanceAggregator(logger *zap.Logger) *BalanceAggregator {
	return &BalanceAggregator{
		logger:                  logger,
		SevereFalsehood:         DefaultSevereFalsehood,
		ManipulativeFalsehood:   DefaultManipulativeFalsehood,
		ReciprocalFloor:         DefaultReciprocalFloor,
		BorderlineIndeterminacy: DefaultBorderlineIndeterminacy,
	}
}

// Aggregate produces the verdict for one evaluated exchange.
//
// Any trust-field violation is a circuit breaker: balance pins to -1.0 and
// no combination of high-truth layers can offset it. Absent violations,
// falsehood is aggregated worst-case (max, never mean) so a single hostile
// layer cannot be diluted by padding the exchange with polite filler.
func (a *BalanceAggregator) Aggregate(ex *domain.Exchange, field domain.TrustField) *domain.ReciprocityVerdict {
	return a.AggregateWithFalsehood(ex, field, ex.MaxFalsehood())
}

// AggregateWithFalsehood aggregates with an explicit worst-case falsehood,
// used when a fire circle consensus supersedes the per-layer maximum. The
// override can only tighten the verdict: callers pass the larger of the
// two.
func (a *BalanceAggregator) AggregateWithFalsehood(ex *domain.Exchange, field domain.TrustField, fMax float64) *domain.ReciprocityVerdict {
	v := &domain.ReciprocityVerdict{
		ID:         uuid.New(),
		Violations: field.Violations,
		CreatedAt:  time.Now().UTC(),
	}
	for i := range ex.Layers {
		l := &ex.Layers[i]
		v.LayerScores = append(v.LayerScores, domain.LayerScore{
			Provenance:    l.Provenance,
			Truth:         l.Truth,
			Indeterminacy: l.Indeterminacy,
			Falsehood:     l.Falsehood,
			Flags:         l.Flags,
		})
	}

	if !field.Empty() {
		v.Balance = circuitBreakerBias
		v.Class = domain.ClassManipulative
		a.logger.Info("circuit breaker fired",
			zap.Int("violations", len(field.Violations)),
			zap.Float64("balance", v.Balance))
		return v
	}

	balance := 0.0
	if fMax > a.SevereFalsehood {
		balance -= severePenalty
	} else {
		balance -= fMax * graduatedSlope
	}
	balance += ex.MeanTruth()

	if balance > 1 {
		balance = 1
	}
	if balance < -1 {
		balance = -1
	}
	v.Balance = balance
	v.Class = a.classify(balance, fMax, ex.MeanIndeterminacy())

	a.logger.Debug("exchange aggregated",
		zap.Float64("balance", balance),
		zap.Float64("f_max", fMax),
		zap.String("class", string(v.Class)))

	return v
}

// classify maps the aggregate numbers to a discrete class.
//
// Known taxonomy gap: when high f_max is the trigger, "manipulative" and
// "extractive" are detected but not reliably distinguished from each
// other. Both land on manipulative here. Do not collapse or re-split the
// cases without new evidence; see DESIGN.md.
func (a *BalanceAggregator) classify(balance, fMax, meanI float64) domain.ExchangeClass {
	switch {
	case fMax > a.ManipulativeFalsehood:
		return domain.ClassManipulative
	case balance >= a.ReciprocalFloor:
		return domain.ClassReciprocal
	case balance >= 0 && meanI > a.BorderlineIndeterminacy:
		return domain.ClassBorderline
	default:
		return domain.ClassExtractive
	}
}
