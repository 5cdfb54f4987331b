package domain

// Provenance marks where a layer's content came from. Trusted layers carry
// operator-authored context (system prompts, tool manifests); untrusted
// layers carry anything a counterparty supplied.
type Provenance string

const (
	ProvenanceTrusted   Provenance = "trusted"
	ProvenanceUntrusted Provenance = "untrusted"
)

func ValidProvenance(p string) bool {
	switch Provenance(p) {
	case ProvenanceTrusted, ProvenanceUntrusted:
		return true
	}
	return false
}

// PromptVariant selects the judge rubric for a layer.
type PromptVariant string

const (
	// VariantCoherence checks trusted layers for internal coherence only.
	VariantCoherence PromptVariant = "coherence"
	// VariantAttack checks untrusted layers for manipulation and extraction.
	VariantAttack PromptVariant = "attack"
)

// VariantFor returns the rubric variant layers of this provenance are
// evaluated under.
func (p Provenance) VariantFor() PromptVariant {
	if p == ProvenanceTrusted {
		return VariantCoherence
	}
	return VariantAttack
}

// Layer is one trust-delimited segment of an exchange. The neutrosophic
// triple and judge flags start zeroed and are filled exactly once by the
// evaluator; callers must treat an evaluated layer as immutable.
type Layer struct {
	Content    string     `json:"content"`
	Provenance Provenance `json:"provenance"`

	Truth         float64  `json:"truth"`
	Indeterminacy float64  `json:"indeterminacy"`
	Falsehood     float64  `json:"falsehood"`
	Flags         []string `json:"flags,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`

	evaluated bool
}

// Evaluated reports whether the layer has received its judge result.
func (l *Layer) Evaluated() bool { return l.evaluated }

// SetEvaluation records the judge result on the layer. It is a no-op after
// the first call: once a layer is scored it stays scored.
func (l *Layer) SetEvaluation(truth, indeterminacy, falsehood float64, flags []string, rationale string) {
	if l.evaluated {
		return
	}
	l.Truth = truth
	l.Indeterminacy = indeterminacy
	l.Falsehood = falsehood
	l.Flags = flags
	l.Rationale = rationale
	l.evaluated = true
}

// HasFlag reports whether the judge raised the named structural flag on
// this layer.
func (l *Layer) HasFlag(name string) bool {
	for _, f := range l.Flags {
		if f == name {
			return true
		}
	}
	return false
}

// Exchange is an ordered sequence of layers. Earlier layers carry higher
// authority: layer 0 is the operator's framing, later layers respond to it.
type Exchange struct {
	Layers []Layer `json:"layers"`
}

// NewExchange builds an exchange, rejecting the empty case.
func NewExchange(layers ...Layer) (*Exchange, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyExchange
	}
	return &Exchange{Layers: layers}, nil
}

// ContextBefore concatenates the content of all layers preceding index i,
// which the judge receives as established context for layer i.
func (e *Exchange) ContextBefore(i int) string {
	ctx := ""
	for j := 0; j < i && j < len(e.Layers); j++ {
		if j > 0 {
			ctx += "\n\n"
		}
		ctx += e.Layers[j].Content
	}
	return ctx
}

// MaxFalsehood returns the worst falsehood across layers. Worst-case, not
// average: padding an exchange with benign filler must not dilute a single
// high-falsehood layer.
func (e *Exchange) MaxFalsehood() float64 {
	max := 0.0
	for i := range e.Layers {
		if e.Layers[i].Falsehood > max {
			max = e.Layers[i].Falsehood
		}
	}
	return max
}

// MeanTruth returns the average truth across layers.
func (e *Exchange) MeanTruth() float64 {
	if len(e.Layers) == 0 {
		return 0
	}
	sum := 0.0
	for i := range e.Layers {
		sum += e.Layers[i].Truth
	}
	return sum / float64(len(e.Layers))
}

// MeanIndeterminacy returns the average indeterminacy across layers.
func (e *Exchange) MeanIndeterminacy() float64 {
	if len(e.Layers) == 0 {
		return 0
	}
	sum := 0.0
	for i := range e.Layers {
		sum += e.Layers[i].Indeterminacy
	}
	return sum / float64(len(e.Layers))
}
