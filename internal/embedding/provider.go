package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}

const mockDimensions = 64

// MockClient returns deterministic embeddings derived from a content hash,
// so similarity queries in tests are stable without network access.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, mockDimensions)
	for i := range vec {
		b := sum[i%len(sum)]
		vec[i] = float32(b)/255.0 - 0.5
	}
	return vec, nil
}
