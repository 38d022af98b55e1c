package pipeline

import (
	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// Gates is the threshold set one classification tier must clear. Every
// gate must pass; evaluation is uniform across sports, only the numbers
// differ.
type Gates struct {
	MinProbability float64
	MinEdge        float64
	MinConfidence  float64
	MaxVarianceZ   float64
	MaxDeviation   float64
}

// GatesFrom converts a configured gate table.
func GatesFrom(gc config.GateConfig) Gates {
	return Gates{
		MinProbability: gc.MinProbability,
		MinEdge:        gc.MinEdge,
		MinConfidence:  gc.MinConfidence,
		MaxVarianceZ:   gc.MaxVarianceZ,
		MaxDeviation:   gc.MaxDeviation,
	}
}

func (g Gates) pass(probability, edge, confidence, varianceZ, deviation float64) bool {
	return probability >= g.MinProbability &&
		edge >= g.MinEdge &&
		confidence >= g.MinConfidence &&
		varianceZ <= g.MaxVarianceZ &&
		deviation <= g.MaxDeviation
}

// ClassifierInputs are the calibrated metrics feeding the state machine.
// Nil pointers mean "not yet computed" and short-circuit to
// PENDING_INPUTS — a data-availability gap to retry later, distinct from
// the analytical rejection NO_PLAY.
type ClassifierInputs struct {
	Probability     *float64
	Edge            *float64
	Confidence      *float64
	VarianceZ       *float64
	MarketDeviation *float64
	LinePresent     bool
	PublishAllowed  bool
	ForceDowngrade  bool
	BlockReasons    []string
}

// Classification is the classifier's output: exactly one of the four
// defined states, with ordered block reasons.
type Classification struct {
	State        models.PickState
	BlockReasons []string
}

// Classifier maps calibrated probability/edge/confidence/variance into a
// publishable decision state. Pure and stateless given its inputs.
type Classifier struct{}

// NewClassifier creates a pick classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify evaluates the ordered gate checks. Missing required inputs win
// over everything; then publish blocks; then PICK, LEAN, NO_PLAY in order.
func (c *Classifier) Classify(in ClassifierInputs, sport config.SportConfig) Classification {
	if pending := missingInputs(in); len(pending) > 0 {
		return Classification{
			State:        models.StatePendingInputs,
			BlockReasons: append(append([]string{}, in.BlockReasons...), pending...),
		}
	}

	if !in.PublishAllowed {
		return Classification{
			State:        models.StateNoPlay,
			BlockReasons: append([]string{}, in.BlockReasons...),
		}
	}

	probability := *in.Probability
	edge := *in.Edge
	confidence := *in.Confidence
	varianceZ := *in.VarianceZ
	deviation := *in.MarketDeviation

	if GatesFrom(sport.PickGates).pass(probability, edge, confidence, varianceZ, deviation) {
		if in.ForceDowngrade {
			return Classification{
				State:        models.StateLean,
				BlockReasons: append(append([]string{}, in.BlockReasons...), models.ReasonBootstrapDowngrade),
			}
		}
		return Classification{State: models.StatePick, BlockReasons: append([]string{}, in.BlockReasons...)}
	}

	if GatesFrom(sport.LeanGates).pass(probability, edge, confidence, varianceZ, deviation) {
		return Classification{State: models.StateLean, BlockReasons: append([]string{}, in.BlockReasons...)}
	}

	return Classification{
		State:        models.StateNoPlay,
		BlockReasons: append(append([]string{}, in.BlockReasons...), models.ReasonBelowLeanGates),
	}
}

// missingInputs lists the data-availability gaps. Edge and market
// deviation derive from the line and the estimate; they are only checked
// once both of those are accounted for, so a present line with an
// uncomputed estimate reports the estimate gaps, not a missing line.
func missingInputs(in ClassifierInputs) []string {
	var pending []string
	if !in.LinePresent {
		pending = append(pending, models.ReasonMarketLineMissing)
	}
	if in.Probability == nil {
		pending = append(pending, models.ReasonProbabilityNotComputed)
	}
	if in.Confidence == nil {
		pending = append(pending, models.ReasonConfidenceNotComputed)
	}
	if in.VarianceZ == nil {
		pending = append(pending, models.ReasonVarianceNotComputed)
	}
	if len(pending) == 0 && (in.Edge == nil || in.MarketDeviation == nil) {
		pending = append(pending, models.ReasonMarketLineMissing)
	}
	return pending
}
