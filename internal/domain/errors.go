package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExchange rejects exchanges with no layers.
var ErrEmptyExchange = errors.New("exchange must contain at least one layer")

// JudgeError is a failed judge call. It always carries the model and layer
// identity so the caller knows which participant failed; it is never
// converted into a neutral score.
type JudgeError struct {
	ModelID    string
	LayerIndex int
	Err        error
}

func (e *JudgeError) Error() string {
	return fmt.Sprintf("judge %s failed on layer %d: %v", e.ModelID, e.LayerIndex, e.Err)
}

func (e *JudgeError) Unwrap() error { return e.Err }

// QuorumError reports that a participant set cannot certify a consensus,
// with the specific missing coverage named.
type QuorumError struct {
	Reason       string
	MissingRoles []CognitiveRole
	Lineages     int
	MinLineages  int
}

func (e *QuorumError) Error() string {
	msg := "quorum failed: " + e.Reason
	if len(e.MissingRoles) > 0 {
		roles := make([]string, len(e.MissingRoles))
		for i, r := range e.MissingRoles {
			roles[i] = string(r)
		}
		msg += " (missing roles: " + strings.Join(roles, ", ") + ")"
	}
	return msg
}

// EnsembleError reports that one or more sub-evaluations in an ensemble
// failed. The merge does not proceed on partial data.
type EnsembleError struct {
	Failures []*JudgeError
}

func (e *EnsembleError) Error() string {
	return fmt.Sprintf("ensemble merge failed: %d of the sub-evaluations errored (first: %v)",
		len(e.Failures), e.Failures[0])
}

func (e *EnsembleError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}
