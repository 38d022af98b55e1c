// Package pipeline implements the simulation-to-decision pipeline: market
// integrity verification, Monte Carlo simulation, reality checking,
// structural decomposition, calibration, classification and audit stamping.
package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// chunkSeedStride separates per-chunk rng streams. Determinism depends on
// chunk seeds being a pure function of the run seed and chunk index.
const chunkSeedStride = 0x9E3779B9

// Outcome is a single sampled final score.
type Outcome struct {
	Home float64
	Away float64
}

// Sampler draws one stochastic outcome from a per-contest parameterized
// model. The parameterization is owned by the upstream ingestion
// collaborator; the engine treats it as opaque.
type Sampler interface {
	Sample(rng *rand.Rand) Outcome
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(rng *rand.Rand) Outcome

// Sample calls f.
func (f SamplerFunc) Sample(rng *rand.Rand) Outcome {
	return f(rng)
}

// ContestInputs carries everything the engine needs for one contest.
type ContestInputs struct {
	ContestID   uuid.UUID
	Sport       string
	HomeSide    string
	AwaySide    string
	Sampler     Sampler
	DataQuality float64 // overall input-quality score in [0,1]
}

// Engine runs Monte Carlo outcome simulations. Trials are independent, so
// the engine partitions them into fixed-size chunks and runs chunks on a
// worker pool; each chunk owns an rng seeded from (runSeed, chunkIndex), so
// output is bit-identical for a fixed seed regardless of scheduling.
type Engine struct {
	cfg    config.SimulationConfig
	logger *logrus.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(cfg config.SimulationConfig, logger *logrus.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2500
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Simulate draws sampleCount independent trials and reduces them to
// distributional statistics. The median is the primary point estimate.
// Exceeding the configured wall-clock budget is fatal for the request;
// the sample count is never silently truncated.
func (e *Engine) Simulate(ctx context.Context, inputs ContestInputs, sampleCount int, seed int64) (*models.SimulationOutput, error) {
	if sampleCount < 1 {
		return nil, models.NewSimulationError(inputs.ContestID.String(), models.ErrInsufficientSamples)
	}
	if inputs.Sampler == nil {
		return nil, models.NewSimulationError(inputs.ContestID.String(), models.ErrContestNotFound)
	}

	if e.cfg.BudgetMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.BudgetMillis)*time.Millisecond)
		defer cancel()
	}

	started := time.Now()

	totals := make([]float64, sampleCount)
	chunkCount := (sampleCount + e.cfg.ChunkSize - 1) / e.cfg.ChunkSize
	stats := make([]chunkStats, chunkCount)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Workers)

	for chunk := 0; chunk < chunkCount; chunk++ {
		chunk := chunk
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			start := chunk * e.cfg.ChunkSize
			end := start + e.cfg.ChunkSize
			if end > sampleCount {
				end = sampleCount
			}

			rng := rand.New(rand.NewSource(seed + int64(chunk)*chunkSeedStride))
			var cs chunkStats
			for i := start; i < end; i++ {
				outcome := inputs.Sampler.Sample(rng)
				totals[i] = outcome.Home + outcome.Away
				cs.homeSum += outcome.Home
				cs.awaySum += outcome.Away
				switch {
				case outcome.Home > outcome.Away:
					cs.homeWins++
				case outcome.Away > outcome.Home:
					cs.awayWins++
				default:
					cs.ties++
				}
			}
			stats[chunk] = cs
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			e.logger.WithFields(logrus.Fields{
				"contest_id":   inputs.ContestID,
				"sample_count": sampleCount,
				"elapsed_ms":   time.Since(started).Milliseconds(),
			}).Error("Simulation budget exceeded")
			return nil, models.NewSimulationError(inputs.ContestID.String(), models.ErrSimulationTimeout)
		}
		return nil, models.NewSimulationError(inputs.ContestID.String(), err)
	}

	var agg chunkStats
	for _, cs := range stats {
		agg.homeWins += cs.homeWins
		agg.awayWins += cs.awayWins
		agg.ties += cs.ties
		agg.homeSum += cs.homeSum
		agg.awaySum += cs.awaySum
	}

	n := float64(sampleCount)
	// Tied trials split evenly so probabilities always sum to 1.
	winProbs := map[string]float64{
		inputs.HomeSide: (float64(agg.homeWins) + float64(agg.ties)/2) / n,
		inputs.AwaySide: (float64(agg.awayWins) + float64(agg.ties)/2) / n,
	}
	sideMeans := map[string]float64{
		inputs.HomeSide: agg.homeSum / n,
		inputs.AwaySide: agg.awaySum / n,
	}

	output, err := models.NewSimulationOutput(totals, winProbs, sideMeans, seed)
	if err != nil {
		return nil, models.NewSimulationError(inputs.ContestID.String(), err)
	}

	e.logger.WithFields(logrus.Fields{
		"contest_id":   inputs.ContestID,
		"sport":        inputs.Sport,
		"sample_count": sampleCount,
		"seed":         seed,
		"median":       output.Median,
		"mean":         output.Mean,
		"duration_ms":  time.Since(started).Milliseconds(),
	}).Debug("Simulation complete")

	return output, nil
}

type chunkStats struct {
	homeWins int
	awayWins int
	ties     int
	homeSum  float64
	awaySum  float64
}
