package domain

// CognitiveRole is a reasoning capability a judge model contributes to a
// fire circle. Coverage is weighted per model, not all-or-nothing.
type CognitiveRole string

const (
	RoleSystemsThinking   CognitiveRole = "systems_thinking"
	RolePatternMatching   CognitiveRole = "pattern_matching"
	RoleTemporalReasoning CognitiveRole = "temporal_reasoning"
	RoleEthicalReasoning  CognitiveRole = "ethical_reasoning"
	RoleAdversarial       CognitiveRole = "adversarial"
	// RoleEmptyChair represents the otherwise-absent perspective (future
	// or external parties affected by the exchange). Assigned by rotation,
	// never a model's native role.
	RoleEmptyChair CognitiveRole = "empty_chair"
)

// ProviderLineage groups models by the infrastructure ecosystem they run
// on. Quorum requires lineage diversity so one ecosystem outage cannot
// hollow out a consensus.
type ProviderLineage string

const (
	LineageOpenAI    ProviderLineage = "openai"
	LineageAnthropic ProviderLineage = "anthropic"
	LineageGoogle    ProviderLineage = "google"
	LineageCerebras  ProviderLineage = "cerebras"
	LineageLocal     ProviderLineage = "local"
)

// AlignmentStyle is the broad training posture of a model family.
type AlignmentStyle string

const (
	AlignmentRLHF           AlignmentStyle = "rlhf"
	AlignmentConstitutional AlignmentStyle = "constitutional"
	AlignmentUnknown        AlignmentStyle = "unknown"
)

// ModelCharacteristics is the static description of one judge model used
// for quorum accounting. Read-only during a run.
type ModelCharacteristics struct {
	ModelID        string                    `json:"model_id"`
	CognitiveRoles map[CognitiveRole]float64 `json:"cognitive_roles"`
	Lineage        ProviderLineage           `json:"provider_lineage"`
	Alignment      AlignmentStyle            `json:"alignment_style"`
}

// RoleWeight returns the model's weight for a role, zero if absent.
func (m ModelCharacteristics) RoleWeight(r CognitiveRole) float64 {
	return m.CognitiveRoles[r]
}
