package judge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"golang.org/x/time/rate"
)

// completer is the provider-specific piece: send one prompt, return the
// raw completion text.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// Judge wraps a provider backend with rubric selection, pacing, timeouts,
// and strict response parsing. All failures come back as *domain.JudgeError
// carrying model and layer identity.
type Judge struct {
	modelID string
	chars   domain.ModelCharacteristics
	backend completer
	limiter *rate.Limiter
	timeout time.Duration
}

func (j *Judge) ModelID() string { return j.modelID }

func (j *Judge) Characteristics() domain.ModelCharacteristics { return j.chars }

func (j *Judge) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.JudgeEvaluation, error) {
	var prompt string
	switch req.Variant {
	case domain.VariantCoherence:
		prompt = fmt.Sprintf(coherencePrompt, req.Context, req.Content)
	case domain.VariantAttack:
		prompt = fmt.Sprintf(attackPrompt, req.Context, req.Content)
	default:
		return nil, &domain.JudgeError{ModelID: j.modelID, LayerIndex: req.LayerIndex,
			Err: fmt.Errorf("unknown prompt variant %q", req.Variant)}
	}

	raw, err := j.completeWithin(ctx, prompt)
	if err != nil {
		return nil, &domain.JudgeError{ModelID: j.modelID, LayerIndex: req.LayerIndex, Err: err}
	}

	eval, _, err := parseEvaluation(j.modelID, req.LayerIndex, raw)
	if err != nil {
		return nil, &domain.JudgeError{ModelID: j.modelID, LayerIndex: req.LayerIndex, Err: err}
	}
	return eval, nil
}

func (j *Judge) Refine(ctx context.Context, req domain.RefinementRequest) (*domain.RoundEvaluation, error) {
	peers := formatPeers(req.Peers)
	var prompt string
	if req.EmptyChair {
		prompt = fmt.Sprintf(emptyChairPrompt, req.ExchangeText, peers)
	} else {
		prompt = fmt.Sprintf(refinementPrompt, req.ExchangeText, peers)
	}

	raw, err := j.completeWithin(ctx, prompt)
	if err != nil {
		return nil, &domain.JudgeError{ModelID: j.modelID, LayerIndex: -1, Err: err}
	}

	eval, patterns, err := parseEvaluation(j.modelID, -1, raw)
	if err != nil {
		return nil, &domain.JudgeError{ModelID: j.modelID, LayerIndex: -1, Err: err}
	}

	return &domain.RoundEvaluation{
		ModelID:          j.modelID,
		Truth:            eval.Truth,
		Indeterminacy:    eval.Indeterminacy,
		Falsehood:        eval.Falsehood,
		Rationale:        eval.Rationale,
		PatternsObserved: patterns,
		EmptyChair:       req.EmptyChair,
	}, nil
}

// completeWithin applies provider pacing and the per-call timeout. A
// timeout surfaces as this participant's failure, exactly like a delivered
// error.
func (j *Judge) completeWithin(ctx context.Context, prompt string) (string, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	return j.backend.complete(ctx, prompt)
}

// formatPeers renders the prior round's evaluations in a stable order so
// the refinement prompt is deterministic given the same round.
func formatPeers(peers map[string]domain.RoundEvaluation) string {
	if len(peers) == 0 {
		return "(none: this is the first round)"
	}

	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		p := peers[id]
		chair := ""
		if p.EmptyChair {
			chair = " [empty chair]"
		}
		fmt.Fprintf(&sb, "- %s%s: truth=%.2f indeterminacy=%.2f falsehood=%.2f | %s\n",
			id, chair, p.Truth, p.Indeterminacy, p.Falsehood, p.Rationale)
	}
	return sb.String()
}
