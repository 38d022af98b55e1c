package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulationOutputStatistics(t *testing.T) {
	samples := []float64{210, 220, 230, 240}
	probs := map[string]float64{"home": 0.6, "away": 0.4}
	means := map[string]float64{"home": 114, "away": 111}

	out, err := NewSimulationOutput(samples, probs, means, 7)
	require.NoError(t, err)

	assert.Equal(t, 4, out.SampleCount)
	assert.Equal(t, 225.0, out.Median, "even count takes the midpoint")
	assert.Equal(t, 225.0, out.Mean)
	assert.True(t, out.ProbabilitiesConserved())
	assert.Greater(t, out.CoefficientOfVariation(), 0.0)
}

func TestNewSimulationOutputOddMedian(t *testing.T) {
	out, err := NewSimulationOutput([]float64{230, 210, 220}, map[string]float64{"a": 0.5, "b": 0.5}, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 220.0, out.Median)
}

func TestNewSimulationOutputRejectsEmpty(t *testing.T) {
	_, err := NewSimulationOutput(nil, nil, nil, 1)
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestProbabilitiesConservedDetectsDrift(t *testing.T) {
	out, err := NewSimulationOutput([]float64{220}, map[string]float64{"a": 0.6, "b": 0.3}, nil, 1)
	require.NoError(t, err)
	assert.False(t, out.ProbabilitiesConserved())
}
