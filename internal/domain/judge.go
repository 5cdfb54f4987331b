package domain

import "context"

// Judge flag names reported by the attack-detection rubric. The trust
// field calculator consumes these; they are semantic signals from the
// judge, not keyword matches.
const (
	FlagRoleAssertion       = "role_assertion"
	FlagInstructionOverride = "instruction_override"
)

// EvaluationRequest is one judge call: a single layer with the context
// established by the layers above it.
type EvaluationRequest struct {
	LayerIndex int
	Content    string
	Context    string
	Variant    PromptVariant
}

// JudgeEvaluation is a judge's neutrosophic assessment of one layer. The
// axes are independent degrees in [0,1]; they need not sum to 1.
type JudgeEvaluation struct {
	ModelID       string   `json:"model_id"`
	LayerIndex    int      `json:"layer_index"`
	Truth         float64  `json:"truth"`
	Indeterminacy float64  `json:"indeterminacy"`
	Falsehood     float64  `json:"falsehood"`
	Rationale     string   `json:"rationale"`
	Flags         []string `json:"flags,omitempty"`
}

// JudgeClient is an external LLM judge. Implementations must return a
// *JudgeError on any failure (timeout, malformed output, missing fields)
// and never substitute a default triple.
type JudgeClient interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*JudgeEvaluation, error)
	ModelID() string
}

// RefinementRequest is a dialogue-round judge call: the model sees the
// frozen peer evaluations from the prior round and may move its own
// assessment in either direction.
type RefinementRequest struct {
	ExchangeText string
	Peers        map[string]RoundEvaluation
	// EmptyChair asks the model to speak for the absent perspective this
	// round instead of its native reading.
	EmptyChair bool
}

// DialogueParticipant is a judge that can also take part in fire circle
// rounds.
type DialogueParticipant interface {
	JudgeClient
	Characteristics() ModelCharacteristics
	Refine(ctx context.Context, req RefinementRequest) (*RoundEvaluation, error)
}

// EmbeddingClient turns pattern descriptions into vectors for the pattern
// library.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
