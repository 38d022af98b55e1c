package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// Decomposition flags
const (
	FlagExcessivePace       = "EXCESSIVE_PACE"
	FlagExcessiveEfficiency = "EXCESSIVE_EFFICIENCY"
	FlagDoubleCounting      = "DOUBLE_COUNTING_LIKELY"
)

// SubComponentRates are the structural sub-rates behind a total estimate:
// possessions per team and points per possession.
type SubComponentRates struct {
	PossessionsPerTeam  float64
	PointsPerPossession float64
}

// RecomposedTotal rebuilds the contest total from the sub-rates,
// independently of the top-level simulation.
func (s SubComponentRates) RecomposedTotal() float64 {
	return 2 * s.PossessionsPerTeam * s.PointsPerPossession
}

// DecompositionResult carries the anomaly flags and the deltas that raised
// them. Advisory only: flags feed the calibration engine's dampening but
// never block publication on their own.
type DecompositionResult struct {
	Flags           []string
	PaceDelta       float64
	EfficiencyDelta float64
	TotalDelta      float64
}

// HasFlag reports whether a specific flag fired.
func (d *DecompositionResult) HasFlag(flag string) bool {
	for _, f := range d.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Analyzer detects systematic overcounting by recomputing the estimate
// from structural sub-components. Both an inflated possession rate and an
// inflated scoring rate firing together is the signature of a model
// compounding two correlated boosts.
type Analyzer struct {
	logger *logrus.Logger
}

// NewAnalyzer creates a decomposition analyzer.
func NewAnalyzer(logger *logrus.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze compares the sub-rate deltas against the baseline's structural
// averages and flags implausible combinations.
func (a *Analyzer) Analyze(rates SubComponentRates, simulatedTotal float64, baseline *models.HistoricalBaseline, sport config.SportConfig) DecompositionResult {
	result := DecompositionResult{
		PaceDelta:       rates.PossessionsPerTeam - baseline.MeanPace,
		EfficiencyDelta: rates.PointsPerPossession - baseline.MeanPointsPerPossession,
		TotalDelta:      rates.RecomposedTotal() - simulatedTotal,
	}

	if result.PaceDelta > sport.PaceDeltaThreshold {
		result.Flags = append(result.Flags, FlagExcessivePace)
	}
	if result.EfficiencyDelta > sport.EfficiencyThreshold {
		result.Flags = append(result.Flags, FlagExcessiveEfficiency)
	}
	if result.HasFlag(FlagExcessivePace) && result.HasFlag(FlagExcessiveEfficiency) {
		result.Flags = append(result.Flags, FlagDoubleCounting)
	}

	if len(result.Flags) > 0 {
		a.logger.WithFields(logrus.Fields{
			"flags":            result.Flags,
			"pace_delta":       fmt.Sprintf("%.2f", result.PaceDelta),
			"efficiency_delta": fmt.Sprintf("%.3f", result.EfficiencyDelta),
			"total_delta":      fmt.Sprintf("%.1f", result.TotalDelta),
		}).Warn("Decomposition anomaly detected")
	}

	return result
}
