package domain

import "time"

// RoundEvaluation is one model's assessment within one dialogue round.
type RoundEvaluation struct {
	ModelID          string   `json:"model_id"`
	Truth            float64  `json:"truth"`
	Indeterminacy    float64  `json:"indeterminacy"`
	Falsehood        float64  `json:"falsehood"`
	Rationale        string   `json:"rationale"`
	PatternsObserved []string `json:"patterns_observed,omitempty"`
	// EmptyChair marks that this model held the empty-chair slot for the
	// round and spoke for the absent perspective, not its native roles.
	EmptyChair bool `json:"empty_chair"`
}

// DialogueRound is one closed round of a fire circle. Rounds are frozen
// snapshots: once closed they are appended to the run log and never
// mutated.
type DialogueRound struct {
	Number      int                        `json:"round_number"`
	Evaluations map[string]RoundEvaluation `json:"evaluations"`
	ClosedAt    time.Time                  `json:"closed_at"`
}

// Snapshot returns a copy of the round's evaluations safe to hand to the
// next round's participants.
func (r DialogueRound) Snapshot() map[string]RoundEvaluation {
	out := make(map[string]RoundEvaluation, len(r.Evaluations))
	for k, v := range r.Evaluations {
		out[k] = v
	}
	return out
}

// PatternObservation is a manipulation shape that enough of the circle,
// with sufficient characteristic diversity, agreed on. Derived and
// read-only once extracted.
type PatternObservation struct {
	PatternType     string            `json:"pattern_type"`
	Description     string            `json:"description"`
	ModelsObserving []string          `json:"models_observing"`
	LineagesAgree   []ProviderLineage `json:"characteristic_groups_observing"`
	AgreementRatio  float64           `json:"agreement_ratio"`
	Embedding       []float32         `json:"-"`
}

// FireCircleResult is the full outcome of one dialogue run: the round log,
// the extracted patterns, and the consensus falsehood over the agreeing
// subset.
type FireCircleResult struct {
	Rounds             []DialogueRound      `json:"rounds"`
	Patterns           []PatternObservation `json:"patterns"`
	ConsensusFalsehood float64              `json:"consensus_falsehood"`
	AgreeingModels     []string             `json:"agreeing_models"`
}
