package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

type rawEvaluation struct {
	Truth         *float64 `json:"truth"`
	Indeterminacy *float64 `json:"indeterminacy"`
	Falsehood     *float64 `json:"falsehood"`
	Flags         []string `json:"flags"`
	Rationale     string   `json:"rationale"`
	Patterns      []string `json:"patterns"`
}

// parseEvaluation parses a judge's raw completion into a JudgeEvaluation.
// Strict by policy: a missing axis or an out-of-range value is an error,
// never replaced with a neutral score, because circuit breakers downstream
// must not run over fabricated data.
func parseEvaluation(modelID string, layerIndex int, raw string) (*domain.JudgeEvaluation, []string, error) {
	raw = stripFences(raw)

	var r rawEvaluation
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, nil, fmt.Errorf("unmarshal judge response: %w", err)
	}

	if r.Truth == nil || r.Indeterminacy == nil || r.Falsehood == nil {
		return nil, nil, fmt.Errorf("judge response missing required axes (truth=%v indeterminacy=%v falsehood=%v)",
			r.Truth != nil, r.Indeterminacy != nil, r.Falsehood != nil)
	}

	for _, v := range []struct {
		name  string
		value float64
	}{
		{"truth", *r.Truth},
		{"indeterminacy", *r.Indeterminacy},
		{"falsehood", *r.Falsehood},
	} {
		if v.value < 0 || v.value > 1 {
			return nil, nil, fmt.Errorf("judge reported %s=%v outside [0,1]", v.name, v.value)
		}
	}

	flags := r.Flags[:0:0]
	for _, f := range r.Flags {
		switch f {
		case domain.FlagRoleAssertion, domain.FlagInstructionOverride:
			flags = append(flags, f)
		}
		// Unknown flags are dropped, not errors: rubric wording evolves
		// faster than the closed violation set.
	}

	return &domain.JudgeEvaluation{
		ModelID:       modelID,
		LayerIndex:    layerIndex,
		Truth:         *r.Truth,
		Indeterminacy: *r.Indeterminacy,
		Falsehood:     *r.Falsehood,
		Rationale:     strings.TrimSpace(r.Rationale),
		Flags:         flags,
	}, r.Patterns, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
