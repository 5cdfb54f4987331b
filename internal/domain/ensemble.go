package domain

// EnsembleStrategy selects how multiple judge evaluations of the same
// layer are merged. Closed set: new strategies require a new constant, not
// a new string.
type EnsembleStrategy string

const (
	// StrategyMaxFalsehood is the security-first default: worst case on
	// every axis, so any single judge's detection wins.
	StrategyMaxFalsehood EnsembleStrategy = "max_falsehood"
	// StrategyAverage is the least conservative merge, for non-security
	// analysis only.
	StrategyAverage EnsembleStrategy = "average"
	// StrategyVoting escalates falsehood to the worst case only when at
	// least half the evaluators cross the alarm threshold.
	StrategyVoting EnsembleStrategy = "voting"
)

func ValidEnsembleStrategy(s string) bool {
	switch EnsembleStrategy(s) {
	case StrategyMaxFalsehood, StrategyAverage, StrategyVoting:
		return true
	}
	return false
}
