package service

import (
	"testing"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

func chars(id string, lineage domain.ProviderLineage, roles map[domain.CognitiveRole]float64) domain.ModelCharacteristics {
	return domain.ModelCharacteristics{ModelID: id, Lineage: lineage, CognitiveRoles: roles}
}

func TestQuorum_Valid(t *testing.T) {
	q := NewQuorumValidator()

	models := []domain.ModelCharacteristics{
		chars("a", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
			domain.RoleTemporalReasoning: 0.8,
			domain.RoleSystemsThinking:   0.5,
		}),
		chars("b", domain.LineageAnthropic, map[domain.CognitiveRole]float64{
			domain.RolePatternMatching:  0.7,
			domain.RoleEthicalReasoning: 0.5,
		}),
	}

	if err := q.Validate(models); err != nil {
		t.Fatalf("expected quorum to pass, got %v", err)
	}
}

func TestQuorum_Empty(t *testing.T) {
	q := NewQuorumValidator()
	if err := q.Validate(nil); err == nil {
		t.Fatal("empty set must fail quorum")
	}
}

func TestQuorum_CriticalRoleHardFloor(t *testing.T) {
	q := NewQuorumValidator()

	// Aggregate coverage is comfortably above the minimum, but the
	// critical temporal role has zero coverage.
	models := []domain.ModelCharacteristics{
		chars("a", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
			domain.RoleSystemsThinking: 1.0,
			domain.RolePatternMatching: 1.0,
		}),
		chars("b", domain.LineageAnthropic, map[domain.CognitiveRole]float64{
			domain.RoleEthicalReasoning: 1.0,
			domain.RolePatternMatching:  1.0,
		}),
	}

	err := q.Validate(models)
	if err == nil {
		t.Fatal("expected quorum failure on missing critical role")
	}
	if len(err.MissingRoles) != 1 || err.MissingRoles[0] != domain.RoleTemporalReasoning {
		t.Fatalf("error should name the missing critical role, got %+v", err)
	}
}

func TestQuorum_InsufficientCoverage(t *testing.T) {
	q := NewQuorumValidator()

	models := []domain.ModelCharacteristics{
		chars("a", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
			domain.RoleTemporalReasoning: 0.3,
		}),
		chars("b", domain.LineageAnthropic, map[domain.CognitiveRole]float64{
			domain.RolePatternMatching: 0.4,
		}),
	}

	if err := q.Validate(models); err == nil {
		t.Fatal("expected quorum failure on low weighted coverage")
	}
}

func TestQuorum_SingleLineage(t *testing.T) {
	q := NewQuorumValidator()

	// Plenty of coverage, but everything comes from one provider family.
	models := []domain.ModelCharacteristics{
		chars("a", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
			domain.RoleTemporalReasoning: 0.9,
			domain.RoleSystemsThinking:   0.9,
		}),
		chars("b", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
			domain.RolePatternMatching:  0.9,
			domain.RoleEthicalReasoning: 0.9,
		}),
	}

	err := q.Validate(models)
	if err == nil {
		t.Fatal("expected quorum failure on single lineage")
	}
	if err.Lineages != 1 || err.MinLineages != 2 {
		t.Fatalf("error should report lineage counts, got %+v", err)
	}
}
