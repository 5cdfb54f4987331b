package domain

import (
	"strings"
	"testing"
)

func TestNewExchange_Empty(t *testing.T) {
	_, err := NewExchange()
	if err != ErrEmptyExchange {
		t.Fatalf("expected ErrEmptyExchange, got %v", err)
	}
}

func TestExchange_ContextBefore(t *testing.T) {
	ex, _ := NewExchange(
		Layer{Content: "system framing", Provenance: ProvenanceTrusted},
		Layer{Content: "user question", Provenance: ProvenanceUntrusted},
		Layer{Content: "followup", Provenance: ProvenanceUntrusted},
	)

	if got := ex.ContextBefore(0); got != "" {
		t.Fatalf("layer 0 should have empty context, got %q", got)
	}
	if got := ex.ContextBefore(1); got != "system framing" {
		t.Fatalf("unexpected context for layer 1: %q", got)
	}
	got := ex.ContextBefore(2)
	if !strings.Contains(got, "system framing") || !strings.Contains(got, "user question") {
		t.Fatalf("layer 2 context should include both prior layers, got %q", got)
	}
}

func TestExchange_MaxFalsehood_ResistsDilution(t *testing.T) {
	// One hostile layer buried under benign filler must still dominate.
	layers := []Layer{{Content: "framing", Provenance: ProvenanceTrusted}}
	for i := 0; i < 10; i++ {
		layers = append(layers, Layer{Content: "polite filler", Provenance: ProvenanceUntrusted})
	}
	layers = append(layers, Layer{Content: "attack", Provenance: ProvenanceUntrusted})

	ex, _ := NewExchange(layers...)
	for i := range ex.Layers {
		f := 0.05
		if ex.Layers[i].Content == "attack" {
			f = 0.95
		}
		ex.Layers[i].SetEvaluation(0.9, 0.1, f, nil, "")
	}

	if got := ex.MaxFalsehood(); got != 0.95 {
		t.Fatalf("expected max falsehood 0.95 regardless of filler count, got %v", got)
	}
}

func TestLayer_SetEvaluation_WriteOnce(t *testing.T) {
	l := Layer{Content: "x", Provenance: ProvenanceUntrusted}
	l.SetEvaluation(0.7, 0.2, 0.1, []string{FlagRoleAssertion}, "first")
	l.SetEvaluation(0.1, 0.9, 0.9, nil, "second")

	if !l.Evaluated() {
		t.Fatal("layer should be evaluated")
	}
	if l.Truth != 0.7 || l.Falsehood != 0.1 || l.Rationale != "first" {
		t.Fatalf("second SetEvaluation must not overwrite: %+v", l)
	}
	if !l.HasFlag(FlagRoleAssertion) {
		t.Fatal("expected role_assertion flag to survive")
	}
}

func TestProvenance_VariantFor(t *testing.T) {
	if ProvenanceTrusted.VariantFor() != VariantCoherence {
		t.Fatal("trusted layers get the coherence rubric")
	}
	if ProvenanceUntrusted.VariantFor() != VariantAttack {
		t.Fatal("untrusted layers get the attack rubric")
	}
}

func TestExchange_Means(t *testing.T) {
	ex, _ := NewExchange(
		Layer{Content: "a", Provenance: ProvenanceTrusted},
		Layer{Content: "b", Provenance: ProvenanceUntrusted},
	)
	ex.Layers[0].SetEvaluation(0.8, 0.2, 0.0, nil, "")
	ex.Layers[1].SetEvaluation(0.4, 0.6, 0.2, nil, "")

	if got := ex.MeanTruth(); got != 0.6 {
		t.Fatalf("expected mean truth 0.6, got %v", got)
	}
	if got := ex.MeanIndeterminacy(); got != 0.4 {
		t.Fatalf("expected mean indeterminacy 0.4, got %v", got)
	}
}
