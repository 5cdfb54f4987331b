package domain

// ViolationKind is a structural trust violation derived from layer
// provenance relationships and judge-reported flags. Violations are binary
// and non-compensable: one violation forces the verdict regardless of how
// reciprocal the rest of the exchange scores.
type ViolationKind string

const (
	// ViolationRoleConfusion fires when an untrusted layer adopts the
	// linguistic posture of the trusted layer (apparent role reversal).
	ViolationRoleConfusion ViolationKind = "role_confusion"
	// ViolationContextSaturation fires when untrusted content crowds out
	// the trusted framing by sheer volume.
	ViolationContextSaturation ViolationKind = "context_saturation"
	// ViolationInstructionOverride fires when an untrusted layer issues
	// directives countermanding a trusted layer.
	ViolationInstructionOverride ViolationKind = "instruction_override"
)

func ValidViolationKind(v string) bool {
	switch ViolationKind(v) {
	case ViolationRoleConfusion, ViolationContextSaturation, ViolationInstructionOverride:
		return true
	}
	return false
}

// TrustField holds the structural violations detected on an exchange.
type TrustField struct {
	Violations []ViolationKind `json:"violations"`
}

// Empty reports whether no violation fired.
func (t TrustField) Empty() bool { return len(t.Violations) == 0 }

// Has reports whether the given violation fired.
func (t TrustField) Has(v ViolationKind) bool {
	for _, k := range t.Violations {
		if k == v {
			return true
		}
	}
	return false
}

// Add appends a violation if it is not already present.
func (t *TrustField) Add(v ViolationKind) {
	if !t.Has(v) {
		t.Violations = append(t.Violations, v)
	}
}
