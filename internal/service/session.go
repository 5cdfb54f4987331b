package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTrustAlpha      = 0.3
	DefaultDebtThreshold   = 0.0
	DefaultTrustFloor      = 0.6
	DefaultDebtCeiling     = 2.0
	DefaultRecoveryTurns   = 3
	DefaultTrajectoryLimit = 50
)

var ErrSessionNotFound = errors.New("session not found")

// SessionService is the temporal accumulator: it folds each turn's verdict
// into the session's trust EMA, cumulative relational debt, and stage.
//
// Concurrent turns against the same session are strictly serialized by a
// per-session lock so the EMA and debt always reflect the true turn
// sequence; different sessions proceed in parallel.
type SessionService struct {
	store  domain.SessionStore
	logger *zap.Logger

	// Alpha is the EMA smoothing factor for trust.
	Alpha float64
	// DebtThreshold is the neutral balance point: turns below it accrue
	// debt, turns above it (once sustained) repay it.
	DebtThreshold float64
	// TrustFloor raises the trust-collapse flag when the EMA drops below.
	TrustFloor float64
	// DebtCeiling raises the debt flag when cumulative debt exceeds it.
	DebtCeiling float64
	// RecoveryTurns is how many consecutive positive turns must pass
	// before positive balances begin to repay debt.
	RecoveryTurns int
	// TrajectoryLimit bounds the retained balance history.
	TrajectoryLimit int

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewSessionService(store domain.SessionStore, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:           store,
		logger:          logger,
		Alpha:           DefaultTrustAlpha,
		DebtThreshold:   DefaultDebtThreshold,
		TrustFloor:      DefaultTrustFloor,
		DebtCeiling:     DefaultDebtCeiling,
		RecoveryTurns:   DefaultRecoveryTurns,
		TrajectoryLimit: DefaultTrajectoryLimit,
		locks:           make(map[uuid.UUID]*sync.Mutex),
	}
}

// Start creates a fresh session for the tenant.
func (s *SessionService) Start(ctx context.Context, tenantID uuid.UUID) (*domain.SessionState, error) {
	// Sessions open fully trusting; only recorded turns move the EMA.
	state := &domain.SessionState{
		TenantID: tenantID,
		TrustEMA: 1.0,
		Stage:    domain.StageFresh,
	}
	if err := s.store.Create(ctx, state); err != nil {
		return nil, err
	}
	s.logger.Info("session started", zap.String("session_id", state.ID.String()))
	return state, nil
}

// Get returns the current session snapshot.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.SessionState, error) {
	return s.store.GetByID(ctx, id, tenantID)
}

// Record folds one turn's verdict into the session state. Exactly one
// mutation per turn.
func (s *SessionService) Record(ctx context.Context, sessionID uuid.UUID, tenantID uuid.UUID, verdict *domain.ReciprocityVerdict) (*domain.SessionState, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.GetByID(ctx, sessionID, tenantID)
	if err != nil {
		return nil, err
	}

	b := verdict.Balance
	state.InteractionCount++
	state.TrustEMA = s.Alpha*s.normalize(b) + (1-s.Alpha)*state.TrustEMA

	s.applyDebt(state, b)

	state.Trajectory = append(state.Trajectory, b)
	if len(state.Trajectory) > s.TrajectoryLimit {
		state.Trajectory = state.Trajectory[len(state.Trajectory)-s.TrajectoryLimit:]
	}

	s.applyFlags(state)
	s.applyStage(state)
	state.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, state); err != nil {
		return nil, err
	}

	s.logger.Debug("session turn recorded",
		zap.String("session_id", sessionID.String()),
		zap.Float64("balance", b),
		zap.Float64("trust_ema", state.TrustEMA),
		zap.Float64("cumulative_debt", state.CumulativeDebt),
		zap.String("stage", string(state.Stage)))

	return state, nil
}

// applyDebt implements the symmetric accrual/repayment rule. Negative
// turns add threshold-b immediately and reset the positive streak, so debt
// is monotone within a violation streak. Positive turns repay b-threshold
// at the same unit scale, but only once RecoveryTurns consecutive positive
// turns have passed: brief politeness between probes does not erase debt,
// sustained repair does. Debt floors at zero.
func (s *SessionService) applyDebt(state *domain.SessionState, b float64) {
	if b < s.DebtThreshold {
		state.CumulativeDebt += s.DebtThreshold - b
		state.PositiveStreak = 0
		return
	}

	state.PositiveStreak++
	if state.PositiveStreak >= s.RecoveryTurns {
		state.CumulativeDebt -= b - s.DebtThreshold
		if state.CumulativeDebt < 0 {
			state.CumulativeDebt = 0
		}
	}
}

func (s *SessionService) applyFlags(state *domain.SessionState) {
	if state.TrustEMA < s.TrustFloor {
		state.RaiseFlag(domain.FlagTrustCollapse)
	} else {
		state.ClearFlag(domain.FlagTrustCollapse)
	}
	if state.CumulativeDebt > s.DebtCeiling {
		state.RaiseFlag(domain.FlagDebtCeiling)
	} else {
		state.ClearFlag(domain.FlagDebtCeiling)
	}
}

// applyStage moves the session between fresh, active, testing_boundaries
// and degraded. Degraded is reachable only when both boundary signals
// fire, and it is always recoverable: once sustained positive turns clear
// the flags the session returns to active. There is no lockout state.
func (s *SessionService) applyStage(state *domain.SessionState) {
	trust := state.HasFlag(domain.FlagTrustCollapse)
	debt := state.HasFlag(domain.FlagDebtCeiling)

	switch {
	case trust && debt:
		state.Stage = domain.StageDegraded
	case trust || debt:
		state.Stage = domain.StageTestingBoundaries
	default:
		state.Stage = domain.StageActive
	}
}

// normalize maps balance [-1,1] to trust [0,1].
func (s *SessionService) normalize(b float64) float64 {
	return (b + 1) / 2
}

// sessionLock returns the serialization lock for a session, creating it on
// first use.
func (s *SessionService) sessionLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
