package judge

import (
	"context"
	"sync"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

// MockJudge is a configurable judge for testing. Set the response fields
// to control what each method returns. Safe for concurrent use so tests
// can exercise the fan-out paths.
type MockJudge struct {
	mu sync.Mutex

	ID    string
	Chars domain.ModelCharacteristics

	// EvaluateResponse is returned from Evaluate unless EvaluateFn or
	// EvaluateError is set.
	EvaluateResponse domain.JudgeEvaluation
	EvaluateError    error
	EvaluateFn       func(req domain.EvaluationRequest) (*domain.JudgeEvaluation, error)

	// RefineResponses are consumed one per Refine call; when exhausted,
	// the last entry repeats. RefineError wins if set.
	RefineResponses []domain.RoundEvaluation
	RefineError     error

	// Call tracking for assertions
	EvaluateCalls []domain.EvaluationRequest
	RefineCalls   []domain.RefinementRequest

	refineIdx int
}

func NewMockJudge(id string) *MockJudge {
	return &MockJudge{
		ID: id,
		Chars: domain.ModelCharacteristics{
			ModelID: id,
			Lineage: domain.LineageLocal,
			CognitiveRoles: map[domain.CognitiveRole]float64{
				domain.RolePatternMatching: 0.5,
			},
		},
		EvaluateResponse: domain.JudgeEvaluation{
			ModelID: id,
			Truth:   0.8, Indeterminacy: 0.1, Falsehood: 0.1,
			Rationale: "mock evaluation",
		},
		RefineResponses: []domain.RoundEvaluation{{
			ModelID: id,
			Truth:   0.8, Indeterminacy: 0.1, Falsehood: 0.1,
			Rationale: "mock refinement",
		}},
	}
}

func (m *MockJudge) ModelID() string { return m.ID }

func (m *MockJudge) Characteristics() domain.ModelCharacteristics { return m.Chars }

func (m *MockJudge) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.JudgeEvaluation, error) {
	m.mu.Lock()
	m.EvaluateCalls = append(m.EvaluateCalls, req)
	m.mu.Unlock()

	if m.EvaluateError != nil {
		return nil, &domain.JudgeError{ModelID: m.ID, LayerIndex: req.LayerIndex, Err: m.EvaluateError}
	}
	if m.EvaluateFn != nil {
		return m.EvaluateFn(req)
	}

	resp := m.EvaluateResponse
	resp.ModelID = m.ID
	resp.LayerIndex = req.LayerIndex
	return &resp, nil
}

func (m *MockJudge) Refine(ctx context.Context, req domain.RefinementRequest) (*domain.RoundEvaluation, error) {
	m.mu.Lock()
	m.RefineCalls = append(m.RefineCalls, req)
	idx := m.refineIdx
	if idx >= len(m.RefineResponses) {
		idx = len(m.RefineResponses) - 1
	}
	m.refineIdx++
	m.mu.Unlock()

	if m.RefineError != nil {
		return nil, &domain.JudgeError{ModelID: m.ID, LayerIndex: -1, Err: m.RefineError}
	}
	if idx < 0 {
		return nil, &domain.JudgeError{ModelID: m.ID, LayerIndex: -1, Err: context.Canceled}
	}

	resp := m.RefineResponses[idx]
	resp.ModelID = m.ID
	resp.EmptyChair = req.EmptyChair
	return &resp, nil
}
