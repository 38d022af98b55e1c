package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/logger"
	"github.com/yourusername/pickwise/internal/metrics"
	"github.com/yourusername/pickwise/internal/models"
)

// SnapshotSource pins the active calibration snapshot for a sport. The
// snapshot is immutable; one decision reads exactly one version.
type SnapshotSource interface {
	Active(sport string) (*models.CalibrationSnapshot, error)
}

// BaselineSource supplies the per-sport rolling historical baseline.
type BaselineSource interface {
	Baseline(ctx context.Context, sport string) (*models.HistoricalBaseline, error)
}

// LineRefresher attempts an out-of-band refresh of a stale line. The
// pipeline proceeds with the existing line when the refresh fails.
type LineRefresher interface {
	Refresh(ctx context.Context, contestID uuid.UUID, scope models.MarketScope) (*models.MarketSnapshot, error)
}

// Request is one decision request. Everything is request-scoped; the only
// cross-request state the pipeline touches is the snapshot and baseline
// sources, both read-mostly and externally owned.
type Request struct {
	Inputs        ContestInputs
	Market        *models.MarketSnapshot
	ExpectedScope models.MarketScope
	SampleCount   int
	Seed          int64
	SubRates      *SubComponentRates
	Live          *LiveContext
	SupersedesID  *uuid.UUID
}

// Pipeline executes the seven stages in strict order. Stages only read
// from earlier stages; a stage may short-circuit into a terminal state.
type Pipeline struct {
	cfg        *config.Config
	verifier   *Verifier
	engine     *Engine
	reality    *RealityCheck
	analyzer   *Analyzer
	calibrator *Calibrator
	classifier *Classifier
	recorder   *Recorder
	snapshots  SnapshotSource
	baselines  BaselineSource
	refresher  LineRefresher
	logger     *logrus.Logger
	audit      *logger.AuditLogger
}

// New wires the pipeline stages together. refresher may be nil when no
// odds-retrieval collaborator is configured.
func New(cfg *config.Config, resolver ContestResolver, snapshots SnapshotSource, baselines BaselineSource, refresher LineRefresher, log *logrus.Logger) (*Pipeline, error) {
	recorder, err := NewRecorder(cfg.App.ModelVersion, cfg.Sports)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		verifier:   NewVerifier(resolver, log),
		engine:     NewEngine(cfg.Simulation, log),
		reality:    NewRealityCheck(log),
		analyzer:   NewAnalyzer(log),
		calibrator: NewCalibrator(log),
		classifier: NewClassifier(),
		recorder:   recorder,
		snapshots:  snapshots,
		baselines:  baselines,
		refresher:  refresher,
		logger:     log,
		audit:      logger.NewAuditLogger(log),
	}, nil
}

// Run executes one decision. Structural and simulation failures propagate
// with no record produced; every other condition is absorbed into the
// DecisionRecord's block reasons and pick state — once simulation succeeds
// the pipeline always completes.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.DecisionRecord, error) {
	sport, err := p.cfg.Sport(req.Inputs.Sport)
	if err != nil {
		return nil, models.NewStructuralError("unknown sport", err)
	}

	now := time.Now().UTC()

	// Stage 1: market integrity. Structural failures are logged even when
	// the caller has already cancelled downstream work.
	verification, err := p.verifier.Verify(ctx, req.Market, sport, req.ExpectedScope, now)
	if err != nil {
		if se, ok := err.(*models.StructuralError); ok {
			p.audit.LogStructuralFailure(marketKeyOf(req), req.Inputs.Sport, se.Reason)
		}
		return nil, err
	}
	p.audit.LogIntegrityResult(req.Market.MarketKey(), req.Inputs.Sport, true, verification.Stale, verification.AgeHours, verification.Warnings)

	market := req.Market
	if verification.Stale && p.refresher != nil {
		if fresh, refreshErr := p.refresher.Refresh(ctx, market.ContestID, market.Scope); refreshErr == nil {
			if _, verifyErr := p.verifier.Verify(ctx, fresh, sport, req.ExpectedScope, now); verifyErr == nil {
				market = fresh
			}
		} else {
			p.logger.WithError(refreshErr).WithField("market_key", market.MarketKey()).Warn("Stale line refresh failed, proceeding with existing line")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A market can verify before its sampling parameters arrive. That is
	// a data-availability gap, not a failure: the decision is recorded as
	// PENDING_INPUTS and picked up again by the retry sweep.
	if req.Inputs.Sampler == nil {
		return p.pendingRecord(req, market, sport, now), nil
	}

	baseline, err := p.baselines.Baseline(ctx, req.Inputs.Sport)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline for %s: %w", req.Inputs.Sport, err)
	}
	snapshot, err := p.snapshots.Active(req.Inputs.Sport)
	if err != nil {
		return nil, fmt.Errorf("failed to pin calibration snapshot for %s: %w", req.Inputs.Sport, err)
	}

	// Stage 2: simulation. Sampling failures are logged here for
	// observability regardless of what the caller does next.
	simStart := time.Now()
	sim, err := p.engine.Simulate(ctx, req.Inputs, req.SampleCount, req.Seed)
	if err != nil {
		p.logger.WithError(err).WithField("market_key", market.MarketKey()).Error("Simulation failed")
		return nil, err
	}
	p.audit.LogSimulationRun(market.MarketKey(), sim.SampleCount, sim.Seed, sim.Median, sim.Mean, sim.Variance, time.Since(simStart).Milliseconds())
	metrics.SimulationDuration.Observe(time.Since(simStart).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: reality check. Confidence is computed first because the
	// extreme-outlier relaxation consults it.
	confidence := ConfidenceScore(sim.SampleCount, sim.CoefficientOfVariation())
	clamp := p.reality.Clamp(sim.Median, baseline, req.Live, sideShares(sim), confidence, sport)
	p.audit.LogClampApplied(market.MarketKey(), sim.Median, clamp.Value, clamp.Passed, clamp.Reasons)
	if len(clamp.Reasons) > 0 {
		metrics.RecordClampTrigger(req.Inputs.Sport)
	}

	// Stage 4: decomposition (advisory).
	var decomposition DecompositionResult
	if p.cfg.Features.DecompositionEnabled && req.SubRates != nil {
		decomposition = p.analyzer.Analyze(*req.SubRates, sim.Median, baseline, sport)
		if len(decomposition.Flags) > 0 {
			p.audit.LogDecompositionFlags(market.MarketKey(), decomposition.Flags, decomposition.PaceDelta, decomposition.EfficiencyDelta)
		}
	}

	// Stage 5: calibration. A failed clamp leaves the market question with
	// no qualifying edge.
	line := market.Line()
	rawEdge := clamp.Value - line
	if !clamp.Passed {
		rawEdge = 0
	}
	deviation := math.Abs(clamp.Value - line)
	varianceZ := (sim.CoefficientOfVariation() - sport.BaselineCov) / sport.CovSpread

	calibrated := p.calibrator.Calibrate(CalibrationInputs{
		RawProbability:  overProbability(sim, line),
		RawEdge:         rawEdge,
		Snapshot:        snapshot,
		Decomposition:   decomposition,
		VarianceZ:       varianceZ,
		DataQuality:     req.Inputs.DataQuality,
		MarketDeviation: deviation,
		SampleCount:     sim.SampleCount,
		Cov:             sim.CoefficientOfVariation(),
	}, sport)
	for _, penalty := range calibrated.AppliedPenalties {
		p.audit.LogCalibrationPenalty(market.MarketKey(), penalty.Layer, penalty.Reason, calibrated.Probability, calibrated.Edge, calibrated.Confidence)
		metrics.RecordCalibrationPenalty(penalty.Layer)
	}

	// Stage 6: classification.
	blockReasons := append([]string{}, calibrated.BlockReasons...)
	if !clamp.Passed {
		blockReasons = append(blockReasons, models.ReasonClampFailed)
	}
	publishAllowed := calibrated.PublishAllowed && p.cfg.Features.PublishingEnabled
	if verification.PublishForbidden {
		publishAllowed = false
		blockReasons = append(blockReasons, models.ReasonNoMarketNoPublish)
	}

	absEdge := math.Abs(calibrated.Edge)
	classification := p.classifier.Classify(ClassifierInputs{
		Probability:     &calibrated.Probability,
		Edge:            &absEdge,
		Confidence:      &calibrated.Confidence,
		VarianceZ:       &varianceZ,
		MarketDeviation: &deviation,
		LinePresent:     true,
		PublishAllowed:  publishAllowed,
		ForceDowngrade:  calibrated.ForceDowngrade,
		BlockReasons:    blockReasons,
	}, sport)

	// Stage 7: stamping.
	triggers := calibrated.TriggeredLayers()
	triggers = append(triggers, clamp.Reasons...)
	triggers = append(triggers, decomposition.Flags...)

	record := &models.DecisionRecord{
		ID:                    uuid.New(),
		ContestID:             market.ContestID,
		MarketKey:             market.MarketKey(),
		Sport:                 req.Inputs.Sport,
		MarketLine:            market.LineValue,
		RawEstimate:           sim.Median,
		ClampedEstimate:       clamp.Value,
		CalibratedProbability: calibrated.Probability,
		CalibratedEdge:        calibrated.Edge,
		ConfidenceScore:       calibrated.Confidence,
		VarianceZ:             varianceZ,
		PickState:             classification.State,
		BlockReasons:          classification.BlockReasons,
		Stamp:                 p.recorder.Stamp(triggers, now),
		SupersedesID:          req.SupersedesID,
		CreatedAt:             now,
	}

	p.audit.LogDecisionRecorded(record.ID.String(), record.MarketKey, record.Sport, string(record.PickState),
		record.CalibratedProbability, record.CalibratedEdge, record.ConfidenceScore, record.BlockReasons, record.Stamp.Triggers)

	return record, nil
}

// pendingRecord classifies a verified market whose simulation inputs have
// not arrived. The line is present but nothing downstream of the sampler
// can be computed, so the classifier short-circuits to PENDING_INPUTS.
func (p *Pipeline) pendingRecord(req Request, market *models.MarketSnapshot, sport config.SportConfig, now time.Time) *models.DecisionRecord {
	classification := p.classifier.Classify(ClassifierInputs{LinePresent: true}, sport)

	record := &models.DecisionRecord{
		ID:           uuid.New(),
		ContestID:    market.ContestID,
		MarketKey:    market.MarketKey(),
		Sport:        req.Inputs.Sport,
		MarketLine:   market.LineValue,
		PickState:    classification.State,
		BlockReasons: classification.BlockReasons,
		Stamp:        p.recorder.Stamp(nil, now),
		SupersedesID: req.SupersedesID,
		CreatedAt:    now,
	}

	p.logger.WithFields(logrus.Fields{
		"market_key": record.MarketKey,
		"reasons":    record.BlockReasons,
	}).Info("Sampling parameters unavailable, decision deferred")
	p.audit.LogDecisionRecorded(record.ID.String(), record.MarketKey, record.Sport, string(record.PickState),
		record.CalibratedProbability, record.CalibratedEdge, record.ConfidenceScore, record.BlockReasons, record.Stamp.Triggers)

	return record
}

// overProbability is the model's probability that the total clears the
// line. Pushes split evenly so over+under always sum to 1.
func overProbability(sim *models.SimulationOutput, line float64) float64 {
	over := 0
	pushes := 0
	for _, total := range sim.OutcomeSamples {
		switch {
		case total > line:
			over++
		case total == line:
			pushes++
		}
	}
	p := (float64(over) + float64(pushes)/2) / float64(sim.SampleCount)
	if p < 0.5 {
		return 1 - p
	}
	return p
}

// sideShares maps each contestant to its share of the simulated total.
func sideShares(sim *models.SimulationOutput) map[string]float64 {
	total := 0.0
	for _, mean := range sim.SideMeans {
		total += mean
	}
	shares := make(map[string]float64, len(sim.SideMeans))
	if total <= 0 {
		return shares
	}
	for side, mean := range sim.SideMeans {
		shares[side] = mean / total
	}
	return shares
}

func marketKeyOf(req Request) string {
	if req.Market != nil {
		return req.Market.MarketKey()
	}
	return req.Inputs.ContestID.String() + ":" + string(req.ExpectedScope)
}
