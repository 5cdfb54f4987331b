package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by PROMPTGUARD_ENV (or .env by
// default), then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("PROMPTGUARD_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// JudgeAPIKey returns the API key for the given judge provider.
func JudgeAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// JudgeModels returns the configured judge pool as a list of
// "provider" or "provider:model" entries.
// Defaults to a single mock judge if not set.
func JudgeModels() []string {
	raw := os.Getenv("JUDGE_MODELS")
	if raw == "" {
		return []string{"mock"}
	}
	var models []string
	for _, m := range strings.Split(raw, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			models = append(models, m)
		}
	}
	return models
}

// EnsembleStrategy returns the configured merge strategy.
// Defaults to "max_falsehood" if not set.
// Valid values: max_falsehood, average, voting
func EnsembleStrategy() string {
	s := os.Getenv("ENSEMBLE_STRATEGY")
	if s == "" {
		return "max_falsehood"
	}
	return s
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// JudgeTimeoutSeconds bounds one judge call. Defaults to 30.
func JudgeTimeoutSeconds() int {
	return intEnv("JUDGE_TIMEOUT_SECONDS", 30)
}

// JudgeRPS paces calls per judge provider. Defaults to 2.
func JudgeRPS() float64 {
	return floatEnv("JUDGE_RPS", 2)
}

// BalanceSevereFalsehood is the f_max above which the severe falsehood
// penalty applies. Defaults to 0.6.
func BalanceSevereFalsehood() float64 {
	return floatEnv("CIRCUIT_FMAX_SEVERE", 0.6)
}

// SessionAlpha is the trust EMA smoothing factor. Defaults to 0.3.
func SessionAlpha() float64 {
	return floatEnv("SESSION_ALPHA", 0.3)
}

// SessionTrustFloor is the boundary-testing trust threshold. Defaults to 0.6.
func SessionTrustFloor() float64 {
	return floatEnv("SESSION_TRUST_FLOOR", 0.6)
}

// SessionDebtCeiling is the boundary-testing debt threshold. Defaults to 2.0.
func SessionDebtCeiling() float64 {
	return floatEnv("SESSION_DEBT_CEILING", 2.0)
}

// SessionRecoveryTurns is how many consecutive positive turns precede debt
// repayment. Defaults to 3.
func SessionRecoveryTurns() int {
	return intEnv("SESSION_RECOVERY_TURNS", 3)
}

// FireCircleMaxRounds bounds a dialogue run. Defaults to 3.
func FireCircleMaxRounds() int {
	return intEnv("FIRECIRCLE_MAX_ROUNDS", 3)
}

// FireCirclePatternThreshold is the agreement ratio a candidate pattern
// needs. Defaults to 0.66.
func FireCirclePatternThreshold() float64 {
	return floatEnv("FIRECIRCLE_PATTERN_THRESHOLD", 0.66)
}

// FireCircleEscalation reports whether borderline verdicts escalate to a
// dialogue run. Defaults to false.
func FireCircleEscalation() bool {
	return os.Getenv("FIRECIRCLE_ESCALATION") == "true"
}

// QuorumMinCoverage is the minimum weighted role coverage. Defaults to 2.0.
func QuorumMinCoverage() float64 {
	return floatEnv("QUORUM_MIN_COVERAGE", 2.0)
}

// QuorumMinLineages is the minimum distinct provider lineages. Defaults to 2.
func QuorumMinLineages() int {
	return intEnv("QUORUM_MIN_LINEAGES", 2)
}

// CacheTTLSeconds is the evaluation cache TTL. Defaults to 86400 (one day).
// Zero disables the cache.
func CacheTTLSeconds() int {
	return intEnv("CACHE_TTL_SECONDS", 86400)
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func intEnv(name string, def int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return def
	}
	return v
}

func floatEnv(name string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(name), 64)
	if err != nil {
		return def
	}
	return v
}
