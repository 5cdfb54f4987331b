package judge

import (
	"fmt"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"golang.org/x/time/rate"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

// Options tunes a judge independently of its provider.
type Options struct {
	// Model overrides the provider's default model.
	Model string
	// Timeout bounds one judge call; exceeding it fails the participant.
	Timeout time.Duration
	// RequestsPerSecond paces calls to the provider; zero disables pacing.
	RequestsPerSecond float64
}

// NewClient creates a judge for the named provider.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string, opts Options) (domain.DialogueParticipant, error) {
	var backend completer
	var model string

	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI judge")
		}
		model = orDefault(opts.Model, openAIDefaultModel)
		backend = newOpenAIBackend(apiKey, model)

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic judge")
		}
		model = orDefault(opts.Model, anthropicDefaultModel)
		backend = newAnthropicBackend(apiKey, model)

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini judge")
		}
		model = orDefault(opts.Model, geminiDefaultModel)
		backend = newGeminiBackend(apiKey, model)

	case ProviderCerebras:
		if apiKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras judge")
		}
		model = orDefault(opts.Model, cerebrasDefaultModel)
		backend = newCerebrasBackend(apiKey, model)

	case ProviderMock:
		return NewMockJudge("mock"), nil

	default:
		return nil, fmt.Errorf("unknown judge provider: %s (valid options: openai, anthropic, gemini, cerebras, mock)", provider)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Judge{
		modelID: provider + ":" + model,
		chars:   defaultCharacteristics(provider, model),
		backend: backend,
		limiter: limiter,
		timeout: opts.Timeout,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
