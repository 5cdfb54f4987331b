package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeClass is the discrete classification of one evaluated exchange.
type ExchangeClass string

const (
	ClassReciprocal   ExchangeClass = "reciprocal"
	ClassExtractive   ExchangeClass = "extractive"
	ClassManipulative ExchangeClass = "manipulative"
	ClassBorderline   ExchangeClass = "borderline"
)

func ValidExchangeClass(c string) bool {
	switch ExchangeClass(c) {
	case ClassReciprocal, ClassExtractive, ClassManipulative, ClassBorderline:
		return true
	}
	return false
}

// LayerScore is the per-layer triple recorded on a verdict.
type LayerScore struct {
	Provenance    Provenance `json:"provenance"`
	Truth         float64    `json:"truth"`
	Indeterminacy float64    `json:"indeterminacy"`
	Falsehood     float64    `json:"falsehood"`
	Flags         []string   `json:"flags,omitempty"`
}

// ReciprocityVerdict is the terminal output of one evaluation. Immutable
// once produced; the caller owns it.
type ReciprocityVerdict struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"-"`
	SessionID   *uuid.UUID      `json:"session_id,omitempty"`
	Balance     float64         `json:"balance"`
	Class       ExchangeClass   `json:"exchange_class"`
	Violations  []ViolationKind `json:"violations"`
	LayerScores []LayerScore    `json:"layer_scores"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Negative reports whether the verdict calls the exchange net-harmful.
func (v *ReciprocityVerdict) Negative() bool {
	return v.Class == ClassManipulative || v.Class == ClassExtractive
}
