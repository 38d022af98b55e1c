package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeQuietWhenRatesMatchBaseline(t *testing.T) {
	analyzer := NewAnalyzer(testLogger())
	sport := basketballSport(t)
	baseline := testBaseline(222.0, 16.0)

	rates := SubComponentRates{PossessionsPerTeam: 99.5, PointsPerPossession: 1.12}
	result := analyzer.Analyze(rates, 223.0, baseline, sport)

	assert.Empty(t, result.Flags)
	assert.InDelta(t, 0.5, result.PaceDelta, 1e-9)
}

func TestAnalyzeFlagsExcessivePaceAlone(t *testing.T) {
	analyzer := NewAnalyzer(testLogger())
	sport := basketballSport(t)
	baseline := testBaseline(222.0, 16.0)

	// Pace +2.3 over baseline, efficiency in line: pace flag only.
	rates := SubComponentRates{PossessionsPerTeam: 101.3, PointsPerPossession: 1.12}
	result := analyzer.Analyze(rates, 227.0, baseline, sport)

	assert.True(t, result.HasFlag(FlagExcessivePace))
	assert.False(t, result.HasFlag(FlagExcessiveEfficiency))
	assert.False(t, result.HasFlag(FlagDoubleCounting))
}

func TestAnalyzeFlagsDoubleCounting(t *testing.T) {
	analyzer := NewAnalyzer(testLogger())
	sport := basketballSport(t)
	baseline := testBaseline(222.0, 16.0)

	// Both pace (+2.3) and efficiency (+0.6) inflated together is the
	// double-counting signature.
	rates := SubComponentRates{PossessionsPerTeam: 101.3, PointsPerPossession: 1.72}
	result := analyzer.Analyze(rates, 240.0, baseline, sport)

	assert.True(t, result.HasFlag(FlagExcessivePace))
	assert.True(t, result.HasFlag(FlagExcessiveEfficiency))
	assert.True(t, result.HasFlag(FlagDoubleCounting))
}

func TestAnalyzeNegativeDeltasNeverFlag(t *testing.T) {
	analyzer := NewAnalyzer(testLogger())
	sport := basketballSport(t)
	baseline := testBaseline(222.0, 16.0)

	rates := SubComponentRates{PossessionsPerTeam: 94.0, PointsPerPossession: 0.95}
	result := analyzer.Analyze(rates, 210.0, baseline, sport)

	assert.Empty(t, result.Flags, "undershooting is not an overcounting signal")
}

func TestRecomposedTotal(t *testing.T) {
	rates := SubComponentRates{PossessionsPerTeam: 100.0, PointsPerPossession: 1.1}
	assert.InDelta(t, 220.0, rates.RecomposedTotal(), 1e-9)
}
