package judge

import (
	"testing"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

func TestNewClient_Mock(t *testing.T) {
	c, err := NewClient(ProviderMock, "", Options{})
	if err != nil {
		t.Fatalf("mock judge should not require an API key, got %v", err)
	}
	if c.ModelID() != "mock" {
		t.Fatalf("unexpected model ID: %q", c.ModelID())
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderCerebras} {
		if _, err := NewClient(provider, "", Options{}); err == nil {
			t.Fatalf("provider %s should reject an empty API key", provider)
		}
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	if _, err := NewClient("carrier-pigeon", "key", Options{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestDefaultCharacteristics_LineageAndRoles(t *testing.T) {
	c, err := NewClient(ProviderOpenAI, "test-key", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	chars := c.Characteristics()
	if chars.Lineage != domain.LineageOpenAI {
		t.Fatalf("expected openai lineage, got %s", chars.Lineage)
	}
	if len(chars.CognitiveRoles) == 0 {
		t.Fatal("expected cognitive role weights to be assigned")
	}
}
