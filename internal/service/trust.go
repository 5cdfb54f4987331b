package service

import (
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"go.uber.org/zap"
)

const DefaultSaturationRatio = 0.85

// TrustFieldCalculator derives structural violations from layer provenance
// relationships and the judge's semantic flags. No keyword matching and no
// randomness: identical exchange plus identical judge output always yields
// the identical trust field.
type TrustFieldCalculator struct {
	logger *zap.Logger

	// SaturationRatio is the untrusted share of total exchange length
	// above which context saturation fires.
	SaturationRatio float64
}

func NewTrustFieldCalculator(logger *zap.Logger) *TrustFieldCalculator {
	return &TrustFieldCalculator{
		logger:          logger,
		SaturationRatio: DefaultSaturationRatio,
	}
}

// Compute inspects an evaluated exchange. Layers must already carry their
// judge results; unevaluated layers contribute nothing.
func (c *TrustFieldCalculator) Compute(ex *domain.Exchange) domain.TrustField {
	var field domain.TrustField

	var total, untrusted int
	seenTrusted := false

	for i := range ex.Layers {
		l := &ex.Layers[i]
		total += len(l.Content)

		if l.Provenance == domain.ProvenanceTrusted {
			seenTrusted = true
			continue
		}
		untrusted += len(l.Content)

		// Role confusion only means something relative to an established
		// trusted framing; an exchange with no trusted layer has no role
		// to confuse.
		if seenTrusted && l.HasFlag(domain.FlagRoleAssertion) {
			field.Add(domain.ViolationRoleConfusion)
		}
		if seenTrusted && l.HasFlag(domain.FlagInstructionOverride) {
			field.Add(domain.ViolationInstructionOverride)
		}
	}

	if total > 0 && seenTrusted {
		ratio := float64(untrusted) / float64(total)
		if ratio > c.SaturationRatio {
			field.Add(domain.ViolationContextSaturation)
		}
	}

	if !field.Empty() {
		kinds := make([]string, len(field.Violations))
		for i, v := range field.Violations {
			kinds[i] = string(v)
		}
		c.logger.Debug("trust field violations detected", zap.Strings("violations", kinds))
	}

	return field
}
