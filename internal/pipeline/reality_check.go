package pipeline

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// LiveContext carries the in-progress state of a contest: elapsed game time
// and the partial score. Supplied by the live score feed when available.
type LiveContext struct {
	ElapsedMinutes float64
	HomePoints     float64
	AwayPoints     float64
}

// ObservedPoints returns the combined partial score.
func (l *LiveContext) ObservedPoints() float64 {
	return l.HomePoints + l.AwayPoints
}

// ElapsedFraction returns how much of the contest has been played.
func (l *LiveContext) ElapsedFraction(gameMinutes float64) float64 {
	if gameMinutes <= 0 {
		return 0
	}
	return l.ElapsedMinutes / gameMinutes
}

// ClampResult is the reality-check output. A failed check never aborts the
// pipeline; it forces the downstream edge calculation to treat the market
// question as having no qualifying edge.
type ClampResult struct {
	Value   float64
	Passed  bool
	Reasons []string
}

// RealityCheck bounds the simulation's point estimate against historical
// distribution bounds and, when available, live-context pace signals.
type RealityCheck struct {
	logger *logrus.Logger
}

// NewRealityCheck creates the reality check layer.
func NewRealityCheck(logger *logrus.Logger) *RealityCheck {
	return &RealityCheck{logger: logger}
}

// Clamp derates raw against the baseline and live context. sideShares maps
// each contestant to its share of the simulated total (used for the
// per-contestant pace ceiling); confidence is the stability score from the
// calibration engine, consulted only by the extreme-outlier relaxation.
// Applying Clamp to an already-clamped value with the same baseline yields
// the same value.
func (r *RealityCheck) Clamp(raw float64, baseline *models.HistoricalBaseline, live *LiveContext, sideShares map[string]float64, confidence float64, sport config.SportConfig) ClampResult {
	result := ClampResult{Value: raw, Passed: true}

	// Historical check: clamp toward the z boundary. High-confidence
	// estimates are judged against the relaxed boundary instead of the
	// strict one; keying the boundary on confidence alone means a value
	// already clamped to it passes unchanged on re-application. Relaxed
	// values stay subject to the live-pace checks below.
	z := baseline.ZScore(raw)
	boundaryZ := sport.ClampZ
	relaxed := confidence >= sport.HighConfidence
	if relaxed {
		boundaryZ = sport.RelaxedZ
	}
	if math.Abs(z) > boundaryZ {
		if relaxed && math.Abs(z) >= sport.ExtremeZ {
			result.Reasons = append(result.Reasons, fmt.Sprintf("EXTREME_Z_RELAXED=%.2f", z))
		}
		bound := boundaryZ
		if z < 0 {
			bound = -boundaryZ
		}
		result.Value = baseline.Bound(bound)
		result.Passed = false
		result.Reasons = append(result.Reasons, fmt.Sprintf("HISTORICAL_OUTLIER_Z=%.2f", z))
	}

	// Live-pace check: past the divergence delta, the pace projection is
	// the better estimate.
	if live != nil {
		fraction := live.ElapsedFraction(sport.GameMinutes)
		if fraction > 0 {
			projection := live.ObservedPoints() / fraction
			if math.Abs(result.Value-projection) > sport.LivePaceDelta {
				result.Value = projection
				result.Passed = false
				result.Reasons = append(result.Reasons, fmt.Sprintf("LIVE_PACE_DIVERGENCE=%.1f", projection))
			}
		}
	}

	// Per-contestant pace ceiling on the clamped total.
	for side, share := range sideShares {
		rate := r.requiredRate(result.Value*share, share, live, sport.GameMinutes)
		if rate > sport.MaxPointsPerMinute {
			result.Passed = false
			result.Reasons = append(result.Reasons, fmt.Sprintf("REQUIRED_PACE_%s=%.2fppm", side, rate))
		}
	}

	if !result.Passed {
		r.logger.WithFields(logrus.Fields{
			"raw":     raw,
			"clamped": result.Value,
			"z":       z,
			"reasons": result.Reasons,
		}).Info("Reality check failed, estimate derated")
	}

	return result
}

// requiredRate computes the points-per-minute a side needs to reach target.
// Pre-game the full contest is available; in-game only the remaining
// minutes count, with the side's observed points approximated by its share
// of the partial total.
func (r *RealityCheck) requiredRate(target, share float64, live *LiveContext, gameMinutes float64) float64 {
	if live == nil || live.ElapsedMinutes <= 0 {
		if gameMinutes <= 0 {
			return 0
		}
		return target / gameMinutes
	}

	remaining := gameMinutes - live.ElapsedMinutes
	if remaining <= 0 {
		return 0
	}

	needed := target - live.ObservedPoints()*share
	if needed <= 0 {
		return 0
	}
	return needed / remaining
}
