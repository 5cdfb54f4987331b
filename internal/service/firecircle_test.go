package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/judge"
	"go.uber.org/zap"
)

func circleMock(id string, lineage domain.ProviderLineage, roles map[domain.CognitiveRole]float64, falsehoods ...float64) *judge.MockJudge {
	m := judge.NewMockJudge(id)
	m.Chars = domain.ModelCharacteristics{ModelID: id, Lineage: lineage, CognitiveRoles: roles}

	m.RefineResponses = nil
	for _, f := range falsehoods {
		m.RefineResponses = append(m.RefineResponses, domain.RoundEvaluation{
			ModelID: id, Truth: 1 - f, Indeterminacy: 0.1, Falsehood: f,
			Rationale: "scenario response",
		})
	}
	return m
}

// Standard trio: three lineages, temporal reasoning covered, aggregate
// coverage comfortably above the floor.
func circleTrio(fA, fB, fC float64) (*judge.MockJudge, *judge.MockJudge, *judge.MockJudge) {
	a := circleMock("a", domain.LineageOpenAI, map[domain.CognitiveRole]float64{
		domain.RoleTemporalReasoning: 0.8,
		domain.RoleSystemsThinking:   0.5,
	}, fA)
	b := circleMock("b", domain.LineageAnthropic, map[domain.CognitiveRole]float64{
		domain.RolePatternMatching:  0.7,
		domain.RoleEthicalReasoning: 0.5,
	}, fB)
	c := circleMock("c", domain.LineageGoogle, map[domain.CognitiveRole]float64{
		domain.RoleSystemsThinking:   0.6,
		domain.RoleTemporalReasoning: 0.4,
	}, fC)
	return a, b, c
}

func circleExchange(t *testing.T) *domain.Exchange {
	t.Helper()
	ex, err := domain.NewExchange(
		domain.Layer{Content: "You are a research assistant.", Provenance: domain.ProvenanceTrusted},
		domain.Layer{Content: "Explain how phishing establishes false authority.", Provenance: domain.ProvenanceUntrusted},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ex
}

func TestFireCircle_UnanimousViolation(t *testing.T) {
	a, b, c := circleTrio(0.7, 0.7, 0.7)
	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	res, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Rounds) != svc.MaxRounds {
		t.Fatalf("expected %d rounds, got %d", svc.MaxRounds, len(res.Rounds))
	}
	if len(res.AgreeingModels) != 3 {
		t.Fatalf("expected unanimous agreement, got %v", res.AgreeingModels)
	}
	if res.ConsensusFalsehood != 0.7 {
		t.Fatalf("expected consensus falsehood 0.7, got %v", res.ConsensusFalsehood)
	}
}

func TestFireCircle_FirstRoundIsIndependent(t *testing.T) {
	a, b, c := circleTrio(0.6, 0.6, 0.6)
	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, m := range []*judge.MockJudge{a, b, c} {
		first := m.RefineCalls[0]
		if len(first.Peers) != 0 {
			t.Fatalf("%s: round 1 must not see peer evaluations", m.ID)
		}
		if first.EmptyChair {
			t.Fatalf("%s: round 1 has no empty chair", m.ID)
		}
	}
}

func TestFireCircle_LaterRoundsSeePriorRound(t *testing.T) {
	a, b, c := circleTrio(0.6, 0.6, 0.6)
	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	second := a.RefineCalls[1]
	if len(second.Peers) != 3 {
		t.Fatalf("round 2 should carry all three prior evaluations, got %d", len(second.Peers))
	}
	if _, ok := second.Peers["b"]; !ok {
		t.Fatal("round 2 peers should include model b")
	}
}

func TestFireCircle_ChairRotatesWithoutRepeats(t *testing.T) {
	a, b, c := circleTrio(0.6, 0.6, 0.6)
	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())
	svc.MaxRounds = 4

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// With three rotation rounds over three models, each holds the chair
	// exactly once and never twice in a row.
	for _, m := range []*judge.MockJudge{a, b, c} {
		held := 0
		prevWasChair := false
		for _, call := range m.RefineCalls {
			if call.EmptyChair {
				held++
				if prevWasChair {
					t.Fatalf("%s held the chair on consecutive rounds", m.ID)
				}
			}
			prevWasChair = call.EmptyChair
		}
		if held != 1 {
			t.Fatalf("%s held the chair %d times, expected 1", m.ID, held)
		}
	}
}

func TestFireCircle_QuorumLossOnFailureAborts(t *testing.T) {
	a, b, c := circleTrio(0.6, 0.6, 0.6)
	// Only a covers the critical temporal role; its failure must abort
	// the run rather than let the survivors certify a consensus.
	c.Chars.CognitiveRoles = map[domain.CognitiveRole]float64{
		domain.RoleSystemsThinking: 0.6,
	}
	a.RefineError = errors.New("upstream timeout")

	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	var qerr *domain.QuorumError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuorumError, got %v", err)
	}
	if len(qerr.MissingRoles) != 1 || qerr.MissingRoles[0] != domain.RoleTemporalReasoning {
		t.Fatalf("error should name the lost critical role, got %+v", qerr)
	}
}

func TestFireCircle_SingleParticipantFailsQuorum(t *testing.T) {
	a, _, _ := circleTrio(0.6, 0.6, 0.6)
	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a})
	var qerr *domain.QuorumError
	if !errors.As(err, &qerr) {
		t.Fatalf("one model is not a circle; expected QuorumError, got %v", err)
	}
}

func TestFireCircle_ChairOutvotedFailsClosed(t *testing.T) {
	// Chair rotation seats "a" for the single refinement round; a reads
	// the exchange as reciprocal while the majority reads violation. The
	// absent perspective was outvoted, so no consensus is certified.
	a, b, c := circleTrio(0.2, 0.8, 0.8)
	a.RefineResponses = append(a.RefineResponses, a.RefineResponses[0])

	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())
	svc.MaxRounds = 2

	_, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	var qerr *domain.QuorumError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuorumError when the chair is outvoted, got %v", err)
	}
}

func TestFireCircle_ConsensusOverAgreeingSubsetOnly(t *testing.T) {
	// a and b vote violation, c votes reciprocal. The consensus is the
	// max over the agreeing majority; c's low reading neither dilutes
	// nor caps it.
	a, b, c := circleTrio(0.6, 0.75, 0.3)

	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())

	res, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.AgreeingModels) != 2 {
		t.Fatalf("expected agreeing subset {a, b}, got %v", res.AgreeingModels)
	}
	if res.ConsensusFalsehood != 0.75 {
		t.Fatalf("expected consensus 0.75 over the agreeing subset, got %v", res.ConsensusFalsehood)
	}
}

func TestFireCircle_PatternExtraction(t *testing.T) {
	a, b, c := circleTrio(0.7, 0.7, 0.7)
	// Patterns surface in the refinement rounds. All three observe role
	// reversal; only b claims the solo quirk.
	for _, m := range []*judge.MockJudge{a, b, c} {
		second := m.RefineResponses[0]
		second.PatternsObserved = []string{"Role Reversal"}
		if m.ID == "b" {
			second.PatternsObserved = append(second.PatternsObserved, "solo quirk")
		}
		m.RefineResponses = append(m.RefineResponses, second)
	}

	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())
	svc.MaxRounds = 2

	res, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(res.Patterns) != 1 {
		t.Fatalf("expected exactly the unanimous pattern, got %+v", res.Patterns)
	}
	p := res.Patterns[0]
	if p.PatternType != "role reversal" {
		t.Fatalf("pattern labels are normalized, got %q", p.PatternType)
	}
	if p.AgreementRatio != 1.0 {
		t.Fatalf("expected agreement ratio 1.0, got %v", p.AgreementRatio)
	}
	if len(p.LineagesAgree) != 3 {
		t.Fatalf("expected three lineages agreeing, got %v", p.LineagesAgree)
	}
}

func TestFireCircle_PatternWithoutQuorumDiscarded(t *testing.T) {
	a, b, c := circleTrio(0.7, 0.7, 0.7)
	// Strip temporal coverage from c so the observing pair {b, c} lacks
	// the critical role even though its agreement ratio clears the bar.
	c.Chars.CognitiveRoles = map[domain.CognitiveRole]float64{
		domain.RoleSystemsThinking: 0.6,
		domain.RolePatternMatching: 0.6,
	}
	for _, m := range []*judge.MockJudge{b, c} {
		second := m.RefineResponses[0]
		second.PatternsObserved = []string{"context flooding"}
		m.RefineResponses = append(m.RefineResponses, second)
	}
	a.RefineResponses = append(a.RefineResponses, a.RefineResponses[0])

	svc := NewFireCircleService(NewQuorumValidator(), zap.NewNop())
	svc.MaxRounds = 2

	res, err := svc.Run(context.Background(), circleExchange(t), []domain.DialogueParticipant{a, b, c})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Patterns) != 0 {
		t.Fatalf("pattern observed without characteristic quorum must be discarded, got %+v", res.Patterns)
	}
}
