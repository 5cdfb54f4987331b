package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

// DefaultVotingThreshold is the falsehood level that counts as an alarm
// vote under the voting strategy.
const DefaultVotingThreshold = 0.6

// ErrNoEvaluations rejects a merge over an empty ensemble.
var ErrNoEvaluations = errors.New("ensemble merge requires at least one evaluation")

// EnsembleResult pairs evaluations with the errors of failed participants
// before a merge is attempted.
type EnsembleResult struct {
	Evaluations []domain.JudgeEvaluation
	Failures    []*domain.JudgeError
}

// MergeEnsemble combines independent evaluations of the same layer under
// the selected strategy.
//
// Contract: commutative and order-independent for every strategy, and
// under max_falsehood strictly monotone: adding an evaluator can raise
// the merged falsehood but never lower it.
//
// Failure policy: if any sub-evaluation failed, the merge fails with an
// EnsembleError. There is no silent substitution of neutral values;
// callers wanting partial results must filter failures out explicitly and
// accept responsibility for the reduced ensemble.
func MergeEnsemble(strategy domain.EnsembleStrategy, res EnsembleResult) (*domain.JudgeEvaluation, error) {
	if len(res.Failures) > 0 {
		return nil, &domain.EnsembleError{Failures: res.Failures}
	}
	evals := res.Evaluations
	if len(evals) == 0 {
		return nil, ErrNoEvaluations
	}

	switch strategy {
	case domain.StrategyMaxFalsehood:
		return mergeMaxFalsehood(evals), nil
	case domain.StrategyAverage:
		return mergeAverage(evals), nil
	case domain.StrategyVoting:
		return mergeVoting(evals), nil
	default:
		return nil, errors.New("unknown ensemble strategy: " + string(strategy))
	}
}

// mergeMaxFalsehood takes the worst case on every axis: min truth, max
// indeterminacy, max falsehood. Any single judge's detection wins.
func mergeMaxFalsehood(evals []domain.JudgeEvaluation) *domain.JudgeEvaluation {
	out := merged(evals)
	out.Truth = evals[0].Truth
	out.Indeterminacy = evals[0].Indeterminacy
	out.Falsehood = evals[0].Falsehood
	for _, e := range evals[1:] {
		if e.Truth < out.Truth {
			out.Truth = e.Truth
		}
		if e.Indeterminacy > out.Indeterminacy {
			out.Indeterminacy = e.Indeterminacy
		}
		if e.Falsehood > out.Falsehood {
			out.Falsehood = e.Falsehood
		}
	}
	return out
}

func mergeAverage(evals []domain.JudgeEvaluation) *domain.JudgeEvaluation {
	out := merged(evals)
	n := float64(len(evals))
	for _, e := range evals {
		out.Truth += e.Truth / n
		out.Indeterminacy += e.Indeterminacy / n
		out.Falsehood += e.Falsehood / n
	}
	return out
}

// mergeVoting averages truth and indeterminacy always; falsehood escalates
// to the worst case when at least half the evaluators cross the alarm
// threshold, otherwise it averages.
func mergeVoting(evals []domain.JudgeEvaluation) *domain.JudgeEvaluation {
	out := merged(evals)
	n := float64(len(evals))

	alarms := 0
	maxF, sumF := 0.0, 0.0
	for _, e := range evals {
		out.Truth += e.Truth / n
		out.Indeterminacy += e.Indeterminacy / n
		sumF += e.Falsehood
		if e.Falsehood > maxF {
			maxF = e.Falsehood
		}
		if e.Falsehood > DefaultVotingThreshold {
			alarms++
		}
	}

	if alarms*2 >= len(evals) {
		out.Falsehood = maxF
	} else {
		out.Falsehood = sumF / n
	}
	return out
}

// merged builds the skeleton of a merge result, unioning flags and
// collecting rationales so no judge's reasoning is lost. Flags and
// rationales are sorted so the output is identical regardless of the
// order evaluations arrived in.
func merged(evals []domain.JudgeEvaluation) *domain.JudgeEvaluation {
	out := &domain.JudgeEvaluation{
		ModelID:    "ensemble",
		LayerIndex: evals[0].LayerIndex,
	}
	seen := make(map[string]bool)
	var rationales []string
	for _, e := range evals {
		for _, f := range e.Flags {
			if !seen[f] {
				seen[f] = true
				out.Flags = append(out.Flags, f)
			}
		}
		if e.Rationale != "" {
			rationales = append(rationales, e.ModelID+": "+e.Rationale)
		}
	}
	sort.Strings(out.Flags)
	sort.Strings(rationales)
	out.Rationale = strings.Join(rationales, " | ")
	return out
}
