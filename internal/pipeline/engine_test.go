package pipeline

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func normalSampler(homeMean, awayMean, std float64) SamplerFunc {
	return func(rng *rand.Rand) Outcome {
		return Outcome{
			Home: homeMean + rng.NormFloat64()*std,
			Away: awayMean + rng.NormFloat64()*std,
		}
	}
}

func testSimConfig() config.SimulationConfig {
	return config.SimulationConfig{
		DefaultSampleCount: 25000,
		SampleTiers:        []int{10000, 25000},
		Workers:            4,
		ChunkSize:          1000,
		BudgetMillis:       5000,
	}
}

func testInputs() ContestInputs {
	return ContestInputs{
		ContestID:   uuid.New(),
		Sport:       "basketball",
		HomeSide:    "home",
		AwaySide:    "away",
		Sampler:     normalSampler(112.0, 109.0, 9.0),
		DataQuality: 0.9,
	}
}

func TestSimulateDeterministicForFixedSeed(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())
	inputs := testInputs()

	first, err := engine.Simulate(context.Background(), inputs, 20000, 42)
	require.NoError(t, err)
	second, err := engine.Simulate(context.Background(), inputs, 20000, 42)
	require.NoError(t, err)

	assert.Equal(t, first.OutcomeSamples, second.OutcomeSamples)
	assert.Equal(t, first.Median, second.Median)
	assert.Equal(t, first.Mean, second.Mean)
	assert.Equal(t, first.SideWinProbabilities, second.SideWinProbabilities)
}

func TestSimulateDifferentSeedsDiffer(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())
	inputs := testInputs()

	first, err := engine.Simulate(context.Background(), inputs, 10000, 1)
	require.NoError(t, err)
	second, err := engine.Simulate(context.Background(), inputs, 10000, 2)
	require.NoError(t, err)

	assert.NotEqual(t, first.OutcomeSamples, second.OutcomeSamples)
}

func TestSimulateIndependentOfWorkerCount(t *testing.T) {
	inputs := testInputs()

	serial := testSimConfig()
	serial.Workers = 1
	parallel := testSimConfig()
	parallel.Workers = 8

	first, err := NewEngine(serial, testLogger()).Simulate(context.Background(), inputs, 15000, 7)
	require.NoError(t, err)
	second, err := NewEngine(parallel, testLogger()).Simulate(context.Background(), inputs, 15000, 7)
	require.NoError(t, err)

	assert.Equal(t, first.OutcomeSamples, second.OutcomeSamples)
}

func TestSimulateConservesProbabilityMass(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())

	out, err := engine.Simulate(context.Background(), testInputs(), 25000, 99)
	require.NoError(t, err)

	assert.True(t, out.ProbabilitiesConserved(), "win probabilities sum to %f", out.ProbabilityMass())
	assert.Equal(t, 25000, out.SampleCount)
	assert.Len(t, out.OutcomeSamples, 25000)
}

func TestSimulateRejectsZeroSamples(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())

	_, err := engine.Simulate(context.Background(), testInputs(), 0, 1)
	require.Error(t, err)
	assert.True(t, models.IsSimulation(err))
	assert.True(t, errors.Is(err, models.ErrInsufficientSamples))
}

func TestSimulateRejectsMissingSampler(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())
	inputs := testInputs()
	inputs.Sampler = nil

	_, err := engine.Simulate(context.Background(), inputs, 1000, 1)
	require.Error(t, err)
	assert.True(t, models.IsSimulation(err))
}

func TestSimulateBudgetExceeded(t *testing.T) {
	cfg := testSimConfig()
	cfg.BudgetMillis = 20
	cfg.ChunkSize = 100
	cfg.Workers = 2
	engine := NewEngine(cfg, testLogger())

	inputs := testInputs()
	inputs.Sampler = SamplerFunc(func(rng *rand.Rand) Outcome {
		time.Sleep(time.Millisecond)
		return Outcome{Home: 110, Away: 108}
	})

	_, err := engine.Simulate(context.Background(), inputs, 10000, 1)
	require.Error(t, err)
	assert.True(t, models.IsSimulation(err))
	assert.True(t, errors.Is(err, models.ErrSimulationTimeout))
}

func TestSimulateCancelledContext(t *testing.T) {
	engine := NewEngine(testSimConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Simulate(ctx, testInputs(), 10000, 1)
	require.Error(t, err)
}
