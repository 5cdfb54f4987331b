package service

import (
	"fmt"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

const (
	DefaultMinRoleCoverage = 2.0
	DefaultMinLineages     = 2
)

// QuorumValidator decides whether a set of judge models is qualitatively
// sufficient to certify a consensus. Quorum is defined over characteristic
// coverage (roles and provider lineage), not raw head count, and it is
// re-checked after every participant failure: a circle that was valid at
// round one is not assumed valid at round three.
type QuorumValidator struct {
	// RequiredRoles are the roles whose weighted coverage is summed.
	RequiredRoles []domain.CognitiveRole
	// CriticalRoles are a hard floor: zero coverage on any one of them
	// fails quorum no matter how high the aggregate is. Critical roles
	// are not fungible with the rest.
	CriticalRoles []domain.CognitiveRole
	// MinCoverage is the minimum summed role weight across the set.
	MinCoverage float64
	// MinLineages is the minimum count of distinct provider lineages.
	MinLineages int
}

func NewQuorumValidator() *QuorumValidator {
	return &QuorumValidator{
		RequiredRoles: []domain.CognitiveRole{
			domain.RoleSystemsThinking,
			domain.RolePatternMatching,
			domain.RoleTemporalReasoning,
			domain.RoleEthicalReasoning,
		},
		CriticalRoles: []domain.CognitiveRole{
			domain.RoleTemporalReasoning,
		},
		MinCoverage: DefaultMinRoleCoverage,
		MinLineages: DefaultMinLineages,
	}
}

// Validate returns nil if the set can certify a consensus, or a
// *domain.QuorumError naming exactly what coverage is missing.
func (q *QuorumValidator) Validate(models []domain.ModelCharacteristics) *domain.QuorumError {
	if len(models) == 0 {
		return &domain.QuorumError{Reason: "no active models"}
	}

	coverage := 0.0
	roleTotals := make(map[domain.CognitiveRole]float64)
	lineages := make(map[domain.ProviderLineage]bool)

	for _, m := range models {
		lineages[m.Lineage] = true
		for _, r := range q.RequiredRoles {
			w := m.RoleWeight(r)
			coverage += w
			roleTotals[r] += w
		}
	}

	// Critical roles first: they fail the set outright even when the
	// aggregate number looks healthy.
	var missing []domain.CognitiveRole
	for _, r := range q.CriticalRoles {
		if roleTotals[r] == 0 {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return &domain.QuorumError{
			Reason:       "critical role has zero coverage",
			MissingRoles: missing,
			Lineages:     len(lineages),
			MinLineages:  q.MinLineages,
		}
	}

	if coverage < q.MinCoverage {
		return &domain.QuorumError{
			Reason:      fmt.Sprintf("weighted role coverage %.2f below minimum %.2f", coverage, q.MinCoverage),
			Lineages:    len(lineages),
			MinLineages: q.MinLineages,
		}
	}

	if len(lineages) < q.MinLineages {
		return &domain.QuorumError{
			Reason:      fmt.Sprintf("only %d provider lineage(s) represented, need %d", len(lineages), q.MinLineages),
			Lineages:    len(lineages),
			MinLineages: q.MinLineages,
		}
	}

	return nil
}
