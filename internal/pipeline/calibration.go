package pipeline

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// Calibration layer names, in execution order.
const (
	LayerDataIntegrity       = "data_integrity"
	LayerBaselineClamp       = "baseline_clamp"
	LayerMarketDeviation     = "market_deviation"
	LayerVarianceSuppression = "variance_suppression"
	LayerPublishGate         = "publish_gate"
)

// CalibrationInputs is everything the five-layer engine consumes for one
// decision. Snapshot is pinned for the whole call; the engine never reads
// shared mutable state.
type CalibrationInputs struct {
	RawProbability  float64
	RawEdge         float64
	Snapshot        *models.CalibrationSnapshot
	Decomposition   DecompositionResult
	VarianceZ       float64
	DataQuality     float64
	MarketDeviation float64
	SampleCount     int
	Cov             float64
}

// calibState is the running tuple each layer folds over.
type calibState struct {
	probability    float64
	edge           float64
	confidence     float64
	publishAllowed bool
	forceDowngrade bool
	blockReasons   []string
}

// layerFunc is one pure penalty function. It returns the updated tuple and,
// when it fired, the applied penalty for the audit trail.
type layerFunc func(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty)

type layer struct {
	name    string
	enabled bool
	apply   layerFunc
}

// Calibrator dampens model bias through five ordered, individually
// toggleable, individually logged layers. Bootstrap mode (no feedback
// history yet) trades hard blocks for degradations everywhere except the
// market-deviation penalty, which always applies.
type Calibrator struct {
	layers []layer
	logger *logrus.Logger
}

// NewCalibrator creates the calibration engine with all layers enabled.
func NewCalibrator(logger *logrus.Logger) *Calibrator {
	return &Calibrator{
		logger: logger,
		layers: []layer{
			{name: LayerDataIntegrity, enabled: true, apply: applyDataIntegrity},
			{name: LayerBaselineClamp, enabled: true, apply: applyBaselineClamp},
			{name: LayerMarketDeviation, enabled: true, apply: applyMarketDeviation},
			{name: LayerVarianceSuppression, enabled: true, apply: applyVarianceSuppression},
			{name: LayerPublishGate, enabled: true, apply: applyPublishGate},
		},
	}
}

// SetEnabled toggles a single layer by name.
func (c *Calibrator) SetEnabled(name string, enabled bool) {
	for i := range c.layers {
		if c.layers[i].name == name {
			c.layers[i].enabled = enabled
		}
	}
}

// Calibrate folds the ordered layers over the raw probability/edge tuple
// and collects every applied penalty for the audit trail.
func (c *Calibrator) Calibrate(in CalibrationInputs, sport config.SportConfig) models.CalibrationResult {
	state := calibState{
		probability:    in.RawProbability,
		edge:           in.RawEdge,
		confidence:     ConfidenceScore(in.SampleCount, in.Cov),
		publishAllowed: true,
	}

	var applied []models.AppliedPenalty
	for _, l := range c.layers {
		if !l.enabled {
			continue
		}
		next, penalty := l.apply(state, in, sport)
		if penalty != nil {
			applied = append(applied, *penalty)
			c.logger.WithFields(logrus.Fields{
				"layer":       penalty.Layer,
				"reason":      penalty.Reason,
				"probability": next.probability,
				"edge":        next.edge,
				"confidence":  next.confidence,
			}).Info("Calibration layer fired")
		}
		state = next
	}

	return models.CalibrationResult{
		Probability:      state.probability,
		Edge:             state.edge,
		Confidence:       state.confidence,
		PublishAllowed:   state.publishAllowed,
		ForceDowngrade:   state.forceDowngrade,
		AppliedPenalties: applied,
		BlockReasons:     state.blockReasons,
	}
}

// ConfidenceScore measures result stability, not correctness: a monotone
// function of sample count and the inverse coefficient of variation,
// independent of win probability. Range [0, 100].
func ConfidenceScore(sampleCount int, cov float64) float64 {
	if sampleCount < 1 {
		return 0
	}
	sampleFactor := math.Log10(float64(sampleCount)) / 5
	if sampleFactor > 1 {
		sampleFactor = 1
	}
	if sampleFactor < 0 {
		sampleFactor = 0
	}
	if cov < 0 {
		cov = 0
	}
	stability := 1 / (1 + 4*cov)
	return 100 * sampleFactor * stability
}

// Layer 1: block publication on poor input quality. Bootstrap mode skips
// the block and degrades confidence instead.
func applyDataIntegrity(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty) {
	if in.DataQuality >= sport.MinDataQuality {
		return state, nil
	}

	if in.Snapshot.BootstrapMode {
		state.confidence *= 0.90
		return state, &models.AppliedPenalty{
			Layer:  LayerDataIntegrity,
			Reason: fmt.Sprintf("quality %.2f below %.2f, confidence degraded (bootstrap)", in.DataQuality, sport.MinDataQuality),
		}
	}

	state.publishAllowed = false
	state.blockReasons = append(state.blockReasons, models.ReasonDataIntegrityBlock)
	return state, &models.AppliedPenalty{
		Layer:  LayerDataIntegrity,
		Reason: fmt.Sprintf("quality %.2f below %.2f, publication blocked", in.DataQuality, sport.MinDataQuality),
	}
}

// Layer 2: damp the edge when rolling bias exceeds the sport's locked drift
// tolerance, or when decomposition points at double counting. Bootstrap
// mode degrades confidence instead of damping.
func applyBaselineClamp(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty) {
	drifted := math.Abs(in.Snapshot.BiasVsActual) > sport.DriftTolerance
	doubleCounting := in.Decomposition.HasFlag(FlagDoubleCounting)
	if !drifted && !doubleCounting {
		return state, nil
	}

	reason := fmt.Sprintf("bias_vs_actual %.2f beyond tolerance %.2f", in.Snapshot.BiasVsActual, sport.DriftTolerance)
	if doubleCounting {
		reason = "double counting likely, edge damped"
	}

	if in.Snapshot.BootstrapMode {
		state.confidence *= 0.85
		return state, &models.AppliedPenalty{
			Layer:  LayerBaselineClamp,
			Reason: reason + " (bootstrap: confidence degraded)",
		}
	}

	state.edge *= in.Snapshot.DampFactor
	return state, &models.AppliedPenalty{Layer: LayerBaselineClamp, Reason: reason}
}

// Layer 3: linear penalty from 0% at the soft deviation threshold to the
// sport maximum at the hard threshold. Applies regardless of bootstrap mode.
func applyMarketDeviation(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty) {
	d := in.MarketDeviation
	if d <= sport.DeviationSoft {
		return state, nil
	}

	fraction := (d - sport.DeviationSoft) / (sport.DeviationHard - sport.DeviationSoft)
	if fraction > 1 {
		fraction = 1
	}
	penalty := fraction * sport.MaxDeviationPenalty
	state.edge *= 1 - penalty

	return state, &models.AppliedPenalty{
		Layer:  LayerMarketDeviation,
		Reason: fmt.Sprintf("deviation %.1f, penalty %.1f%%", d, penalty*100),
	}
}

// Layer 4: suppress volatile results. The penalty starts at 50% past the
// soft cutoff and scales to 75% past the hard cutoff; beyond the block
// cutoff publication is withdrawn in normal mode and degraded in bootstrap.
func applyVarianceSuppression(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty) {
	vz := in.VarianceZ
	if vz <= sport.VarianceZSoft {
		return state, nil
	}

	penalty := 0.50
	if vz > sport.VarianceZHard {
		extra := (vz - sport.VarianceZHard) / (sport.VarianceZBlock - sport.VarianceZHard)
		if extra > 1 {
			extra = 1
		}
		penalty += 0.25 * extra
	}
	state.edge *= 1 - penalty
	reason := fmt.Sprintf("variance z %.2f, penalty %.0f%%", vz, penalty*100)

	if vz > sport.VarianceZBlock {
		if in.Snapshot.BootstrapMode {
			state.confidence *= 0.80
			reason += " (bootstrap: confidence degraded)"
		} else {
			state.publishAllowed = false
			state.blockReasons = append(state.blockReasons, models.ReasonVarianceBlock)
			reason += ", publication blocked"
		}
	}

	return state, &models.AppliedPenalty{Layer: LayerVarianceSuppression, Reason: reason}
}

// Layer 5: final gate. Bootstrap mode hard-caps the probability, applies a
// fixed extra edge penalty, and force-downgrades any would-be top-tier
// classification one level.
func applyPublishGate(state calibState, in CalibrationInputs, sport config.SportConfig) (calibState, *models.AppliedPenalty) {
	if !in.Snapshot.BootstrapMode {
		return state, nil
	}

	capped := false
	if state.probability > sport.BootstrapProbCap {
		state.probability = sport.BootstrapProbCap
		capped = true
	}
	state.edge *= 1 - sport.BootstrapEdgePenalty
	state.forceDowngrade = true

	reason := fmt.Sprintf("bootstrap gate: edge penalty %.0f%%, top tier downgraded", sport.BootstrapEdgePenalty*100)
	if capped {
		reason = fmt.Sprintf("bootstrap gate: probability capped at %.2f, edge penalty %.0f%%, top tier downgraded",
			sport.BootstrapProbCap, sport.BootstrapEdgePenalty*100)
	}
	return state, &models.AppliedPenalty{Layer: LayerPublishGate, Reason: reason}
}
