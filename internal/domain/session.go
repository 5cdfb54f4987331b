package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStage is the temporal state of a conversation being tracked.
type SessionStage string

const (
	// StageFresh: created, no turns recorded yet.
	StageFresh SessionStage = "fresh"
	// StageActive: turns recorded, no boundary concern.
	StageActive SessionStage = "active"
	// StageTestingBoundaries: trust EMA below floor or debt above ceiling.
	StageTestingBoundaries SessionStage = "testing_boundaries"
	// StageDegraded: both boundary signals fired. Recoverable through
	// sustained positive turns, never a terminal lockout.
	StageDegraded SessionStage = "degraded"
)

func ValidSessionStage(s string) bool {
	switch SessionStage(s) {
	case StageFresh, StageActive, StageTestingBoundaries, StageDegraded:
		return true
	}
	return false
}

// BoundaryFlag names a boundary-testing signal raised on a session.
type BoundaryFlag string

const (
	FlagTrustCollapse BoundaryFlag = "trust_collapse"
	FlagDebtCeiling   BoundaryFlag = "debt_ceiling"
)

// SessionState is the accumulated temporal state of one conversation.
// Mutated exactly once per turn by the session accumulator; storage and
// teardown belong to the session store.
type SessionState struct {
	ID               uuid.UUID      `json:"id"`
	TenantID         uuid.UUID      `json:"-"`
	InteractionCount int            `json:"interaction_count"`
	TrustEMA         float64        `json:"trust_ema"`
	Trajectory       []float64      `json:"balance_trajectory"`
	CumulativeDebt   float64        `json:"cumulative_debt"`
	PositiveStreak   int            `json:"positive_streak"`
	Stage            SessionStage   `json:"stage"`
	BoundaryFlags    []BoundaryFlag `json:"boundary_flags,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasFlag reports whether the named boundary flag is raised.
func (s *SessionState) HasFlag(f BoundaryFlag) bool {
	for _, x := range s.BoundaryFlags {
		if x == f {
			return true
		}
	}
	return false
}

// RaiseFlag adds a boundary flag if not already present.
func (s *SessionState) RaiseFlag(f BoundaryFlag) {
	if !s.HasFlag(f) {
		s.BoundaryFlags = append(s.BoundaryFlags, f)
	}
}

// ClearFlag removes a boundary flag.
func (s *SessionState) ClearFlag(f BoundaryFlag) {
	out := s.BoundaryFlags[:0]
	for _, x := range s.BoundaryFlags {
		if x != f {
			out = append(out, x)
		}
	}
	s.BoundaryFlags = out
}
