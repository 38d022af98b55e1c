package models

import (
	"math"
	"sort"
)

// WinProbabilityEpsilon bounds how far side win probabilities may drift
// from summing to exactly 1.
const WinProbabilityEpsilon = 1e-6

// SimulationOutput is the immutable result of one simulation run. It is
// created once per run by the simulation engine and never mutated; every
// downstream stage reads from the same value.
type SimulationOutput struct {
	SampleCount          int                `json:"sample_count"`
	OutcomeSamples       []float64          `json:"outcome_samples"`
	Median               float64            `json:"median"`
	Mean                 float64            `json:"mean"`
	Variance             float64            `json:"variance"`
	SideWinProbabilities map[string]float64 `json:"side_win_probabilities"`
	SideMeans            map[string]float64 `json:"side_means"`
	Seed                 int64              `json:"seed"`
}

// NewSimulationOutput derives the cached distributional statistics from the
// raw outcome samples. The samples slice is owned by the output after the
// call and must not be modified by the caller.
func NewSimulationOutput(samples []float64, sideWinProbs, sideMeans map[string]float64, seed int64) (*SimulationOutput, error) {
	if len(samples) < 1 {
		return nil, ErrInsufficientSamples
	}

	mean, variance := meanVariance(samples)

	return &SimulationOutput{
		SampleCount:          len(samples),
		OutcomeSamples:       samples,
		Median:               median(samples),
		Mean:                 mean,
		Variance:             variance,
		SideWinProbabilities: sideWinProbs,
		SideMeans:            sideMeans,
		Seed:                 seed,
	}, nil
}

// StdDev returns the standard deviation of the outcome distribution.
func (s *SimulationOutput) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// CoefficientOfVariation measures result stability relative to the mean.
// Returns 0 for a zero mean to avoid a meaningless blowup.
func (s *SimulationOutput) CoefficientOfVariation() float64 {
	if s.Mean == 0 {
		return 0
	}
	return s.StdDev() / math.Abs(s.Mean)
}

// ProbabilityMass returns the sum of all side win probabilities.
func (s *SimulationOutput) ProbabilityMass() float64 {
	total := 0.0
	for _, p := range s.SideWinProbabilities {
		total += p
	}
	return total
}

// ProbabilitiesConserved checks the probability-conservation invariant.
func (s *SimulationOutput) ProbabilitiesConserved() bool {
	return math.Abs(s.ProbabilityMass()-1.0) <= WinProbabilityEpsilon
}

func meanVariance(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mean, variance
}

func median(values []float64) float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
