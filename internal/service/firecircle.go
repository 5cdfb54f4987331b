package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultMaxRounds        = 3
	DefaultPatternThreshold = 0.66
	// DefaultViolationVote is the falsehood level at which a model is
	// counted as voting that the exchange violates reciprocity.
	DefaultViolationVote = 0.5
)

// FireCircleService orchestrates multiple judges through bounded rounds of
// independent assessment, cross-visible refinement, and pattern
// extraction. The round log is append-only: each closed round is a frozen
// snapshot the next round reads but can never rewrite.
type FireCircleService struct {
	quorum *QuorumValidator
	logger *zap.Logger

	MaxRounds        int
	PatternThreshold float64
	ViolationVote    float64
}

func NewFireCircleService(quorum *QuorumValidator, logger *zap.Logger) *FireCircleService {
	return &FireCircleService{
		quorum:           quorum,
		logger:           logger,
		MaxRounds:        DefaultMaxRounds,
		PatternThreshold: DefaultPatternThreshold,
		ViolationVote:    DefaultViolationVote,
	}
}

// Run convenes the circle over an exchange. It fails with a
// *domain.QuorumError whenever the active or agreeing set loses the
// characteristic coverage needed to certify a result; there is no
// numeric fallback from a qualitatively invalid circle.
func (s *FireCircleService) Run(ctx context.Context, ex *domain.Exchange, participants []domain.DialogueParticipant) (*domain.FireCircleResult, error) {
	active := make([]domain.DialogueParticipant, len(participants))
	copy(active, participants)
	sort.Slice(active, func(i, j int) bool { return active[i].ModelID() < active[j].ModelID() })

	exchangeText := flattenExchange(ex)
	result := &domain.FireCircleResult{}
	prevChair := ""

	for round := 1; round <= s.MaxRounds; round++ {
		// Round 1 establishes the baseline without a quorum gate; every
		// later round requires the active set to still hold quorum.
		if round > 1 {
			if qerr := s.quorum.Validate(characteristics(active)); qerr != nil {
				return nil, qerr
			}
		}

		chair := ""
		var peers map[string]domain.RoundEvaluation
		if round > 1 {
			peers = result.Rounds[len(result.Rounds)-1].Snapshot()
			chair = s.nextChair(active, prevChair)
		}

		evals, failed := s.runRound(ctx, active, exchangeText, peers, chair)

		if len(failed) > 0 {
			active = drop(active, failed)
			s.logger.Warn("fire circle participants failed",
				zap.Int("round", round),
				zap.Strings("failed", failed),
				zap.Int("remaining", len(active)))
			// Quorum is not assumed stable across failures: re-validate
			// the survivors before accepting the round.
			if qerr := s.quorum.Validate(characteristics(active)); qerr != nil {
				return nil, qerr
			}
		}

		result.Rounds = append(result.Rounds, domain.DialogueRound{
			Number:      round,
			Evaluations: evals,
			ClosedAt:    time.Now().UTC(),
		})
		prevChair = chair

		if round > 1 {
			result.Patterns = append(result.Patterns, s.extractPatterns(evals, active)...)
		}
	}

	return s.finalize(result, active, prevChair)
}

// runRound fans the prompt out to every active participant concurrently
// and collects the survivors' evaluations plus the IDs of those that
// failed. A timeout inside a participant surfaces as that participant's
// failure, exactly like a delivered error.
func (s *FireCircleService) runRound(ctx context.Context, active []domain.DialogueParticipant, exchangeText string, peers map[string]domain.RoundEvaluation, chair string) (map[string]domain.RoundEvaluation, []string) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		evals  = make(map[string]domain.RoundEvaluation, len(active))
		failed []string
	)

	for _, p := range active {
		wg.Add(1)
		go func(p domain.DialogueParticipant) {
			defer wg.Done()
			eval, err := p.Refine(ctx, domain.RefinementRequest{
				ExchangeText: exchangeText,
				Peers:        peers,
				EmptyChair:   p.ModelID() == chair,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, p.ModelID())
				s.logger.Warn("fire circle participant errored",
					zap.String("model", p.ModelID()), zap.Error(err))
				return
			}
			evals[p.ModelID()] = *eval
		}(p)
	}
	wg.Wait()

	sort.Strings(failed)
	return evals, failed
}

// nextChair rotates the empty chair through the active set in model-ID
// order, never seating the same model on consecutive rounds.
func (s *FireCircleService) nextChair(active []domain.DialogueParticipant, prevChair string) string {
	if len(active) == 0 {
		return ""
	}
	if len(active) == 1 {
		// A single remaining participant cannot rotate; leave the chair
		// empty rather than repeat the holder. Finalization will fail
		// quorum anyway on a one-model circle.
		if active[0].ModelID() == prevChair {
			return ""
		}
		return active[0].ModelID()
	}

	idx := 0
	for i, p := range active {
		if p.ModelID() == prevChair {
			idx = (i + 1) % len(active)
			break
		}
	}
	if active[idx].ModelID() == prevChair {
		idx = (idx + 1) % len(active)
	}
	return active[idx].ModelID()
}

// extractPatterns promotes a candidate pattern to a PatternObservation
// only when (a) the agreement ratio among currently-active models meets
// the threshold, and (b) the agreeing subset itself holds quorum. A
// pattern everyone from one lineage sees and nobody else does is noise,
// not consensus.
func (s *FireCircleService) extractPatterns(evals map[string]domain.RoundEvaluation, active []domain.DialogueParticipant) []domain.PatternObservation {
	if len(active) == 0 {
		return nil
	}

	charsByID := make(map[string]domain.ModelCharacteristics, len(active))
	for _, p := range active {
		charsByID[p.ModelID()] = p.Characteristics()
	}

	observers := make(map[string][]string)
	for id, e := range evals {
		for _, raw := range e.PatternsObserved {
			label := strings.ToLower(strings.TrimSpace(raw))
			if label == "" {
				continue
			}
			observers[label] = append(observers[label], id)
		}
	}

	labels := make([]string, 0, len(observers))
	for label := range observers {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var out []domain.PatternObservation
	for _, label := range labels {
		ids := observers[label]
		ratio := float64(len(ids)) / float64(len(active))
		if ratio < s.PatternThreshold {
			continue
		}

		var chars []domain.ModelCharacteristics
		for _, id := range ids {
			if c, ok := charsByID[id]; ok {
				chars = append(chars, c)
			}
		}
		if qerr := s.quorum.Validate(chars); qerr != nil {
			s.logger.Debug("pattern observed without quorum",
				zap.String("pattern", label), zap.String("reason", qerr.Reason))
			continue
		}

		sort.Strings(ids)
		out = append(out, domain.PatternObservation{
			PatternType:     label,
			Description:     label,
			ModelsObserving: ids,
			LineagesAgree:   lineagesOf(chars),
			AgreementRatio:  ratio,
		})
	}
	return out
}

// finalize computes the consensus from the last round. The agreeing
// subset is the majority side of the violation vote; consensus falsehood
// is the max over that subset, accepted only when the subset passes
// quorum and contains the final empty-chair holder.
func (s *FireCircleService) finalize(result *domain.FireCircleResult, active []domain.DialogueParticipant, chair string) (*domain.FireCircleResult, error) {
	if len(result.Rounds) == 0 {
		return nil, &domain.QuorumError{Reason: "no rounds completed"}
	}
	final := result.Rounds[len(result.Rounds)-1]

	var violation, reciprocal []string
	for id, e := range final.Evaluations {
		if e.Falsehood >= s.ViolationVote {
			violation = append(violation, id)
		} else {
			reciprocal = append(reciprocal, id)
		}
	}

	agreeing := violation
	if len(reciprocal) > len(violation) {
		agreeing = reciprocal
	}
	sort.Strings(agreeing)

	chairAgrees := false
	for _, id := range agreeing {
		if id == chair {
			chairAgrees = true
		}
	}
	if chair == "" || !chairAgrees {
		return nil, &domain.QuorumError{
			Reason: "empty-chair contributor is not among the agreeing set; the absent perspective was outvoted",
		}
	}

	charsByID := make(map[string]domain.ModelCharacteristics, len(active))
	for _, p := range active {
		charsByID[p.ModelID()] = p.Characteristics()
	}
	var chars []domain.ModelCharacteristics
	for _, id := range agreeing {
		if c, ok := charsByID[id]; ok {
			chars = append(chars, c)
		}
	}
	if qerr := s.quorum.Validate(chars); qerr != nil {
		return nil, qerr
	}

	consensus := 0.0
	for _, id := range agreeing {
		if e, ok := final.Evaluations[id]; ok && e.Falsehood > consensus {
			consensus = e.Falsehood
		}
	}

	result.ConsensusFalsehood = consensus
	result.AgreeingModels = agreeing

	s.logger.Info("fire circle concluded",
		zap.Int("rounds", len(result.Rounds)),
		zap.Int("agreeing", len(agreeing)),
		zap.Float64("consensus_falsehood", consensus))

	return result, nil
}

func characteristics(ps []domain.DialogueParticipant) []domain.ModelCharacteristics {
	out := make([]domain.ModelCharacteristics, len(ps))
	for i, p := range ps {
		out[i] = p.Characteristics()
	}
	return out
}

func lineagesOf(chars []domain.ModelCharacteristics) []domain.ProviderLineage {
	seen := make(map[domain.ProviderLineage]bool)
	var out []domain.ProviderLineage
	for _, c := range chars {
		if !seen[c.Lineage] {
			seen[c.Lineage] = true
			out = append(out, c.Lineage)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func drop(ps []domain.DialogueParticipant, ids []string) []domain.DialogueParticipant {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	out := ps[:0]
	for _, p := range ps {
		if !gone[p.ModelID()] {
			out = append(out, p)
		}
	}
	return out
}

// flattenExchange renders the exchange with provenance markers for
// whole-exchange dialogue prompts.
func flattenExchange(ex *domain.Exchange) string {
	var sb strings.Builder
	for i := range ex.Layers {
		l := &ex.Layers[i]
		sb.WriteString("[")
		sb.WriteString(strings.ToUpper(string(l.Provenance)))
		sb.WriteString("] ")
		sb.WriteString(l.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
