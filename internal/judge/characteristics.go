package judge

import "github.com/fsgeek/promptguard-sub003/internal/domain"

// defaultCharacteristics maps a provider to its quorum-accounting profile.
// Role weights are coarse editorial judgments, not benchmarks; operators
// can override them in config when better data exists.
func defaultCharacteristics(provider, model string) domain.ModelCharacteristics {
	switch provider {
	case ProviderOpenAI:
		return domain.ModelCharacteristics{
			ModelID:   provider + ":" + model,
			Lineage:   domain.LineageOpenAI,
			Alignment: domain.AlignmentRLHF,
			CognitiveRoles: map[domain.CognitiveRole]float64{
				domain.RoleSystemsThinking:   0.7,
				domain.RolePatternMatching:   0.8,
				domain.RoleTemporalReasoning: 0.5,
				domain.RoleAdversarial:       0.6,
			},
		}
	case ProviderAnthropic:
		return domain.ModelCharacteristics{
			ModelID:   provider + ":" + model,
			Lineage:   domain.LineageAnthropic,
			Alignment: domain.AlignmentConstitutional,
			CognitiveRoles: map[domain.CognitiveRole]float64{
				domain.RoleSystemsThinking:   0.8,
				domain.RoleEthicalReasoning:  0.9,
				domain.RoleTemporalReasoning: 0.6,
				domain.RolePatternMatching:   0.6,
			},
		}
	case ProviderGemini:
		return domain.ModelCharacteristics{
			ModelID:   provider + ":" + model,
			Lineage:   domain.LineageGoogle,
			Alignment: domain.AlignmentRLHF,
			CognitiveRoles: map[domain.CognitiveRole]float64{
				domain.RolePatternMatching:   0.8,
				domain.RoleTemporalReasoning: 0.7,
				domain.RoleAdversarial:       0.5,
			},
		}
	case ProviderCerebras:
		return domain.ModelCharacteristics{
			ModelID:   provider + ":" + model,
			Lineage:   domain.LineageCerebras,
			Alignment: domain.AlignmentUnknown,
			CognitiveRoles: map[domain.CognitiveRole]float64{
				domain.RolePatternMatching: 0.7,
				domain.RoleAdversarial:     0.7,
			},
		}
	default:
		return domain.ModelCharacteristics{
			ModelID:        provider + ":" + model,
			Lineage:        domain.LineageLocal,
			Alignment:      domain.AlignmentUnknown,
			CognitiveRoles: map[domain.CognitiveRole]float64{},
		}
	}
}
