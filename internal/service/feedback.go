package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/logger"
	"github.com/yourusername/pickwise/internal/metrics"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/repository"
	"github.com/yourusername/pickwise/internal/snapshot"
)

// gradingLookback bounds how far back the daily job searches for finished
// contests that still need grading.
const gradingLookback = 48 * time.Hour

// snapshotWindow is the grading window one calibration snapshot is built
// from.
const snapshotWindow = 24 * time.Hour

// FeedbackService grades finished contests against the decisions made on
// them and folds the results into the next calibration snapshot.
type FeedbackService struct {
	cfg       *config.Config
	repos     *repository.Repositories
	store     *snapshot.Store
	baselines *snapshot.BaselineCache
	logger    *logrus.Entry
	audit     *logger.AuditLogger
}

// NewFeedbackService creates a feedback service. baselines may be nil
// when no baseline cache needs invalidation.
func NewFeedbackService(cfg *config.Config, repos *repository.Repositories, store *snapshot.Store, baselines *snapshot.BaselineCache, log *logrus.Logger) *FeedbackService {
	return &FeedbackService{
		cfg:       cfg,
		repos:     repos,
		store:     store,
		baselines: baselines,
		logger:    log.WithField("component", "feedback_service"),
		audit:     logger.NewAuditLogger(log),
	}
}

// GradeContests grades every finished, ungraded contest for a sport that
// started within the lookback window. Contests with no decision or no
// priced line are skipped.
func (s *FeedbackService) GradeContests(ctx context.Context, sportName string, now time.Time) (int, error) {
	sport, err := s.cfg.Sport(sportName)
	if err != nil {
		return 0, err
	}

	contests, err := s.repos.Contest.ListFinishedSince(ctx, sportName, now.Add(-gradingLookback))
	if err != nil {
		return 0, fmt.Errorf("failed to list finished contests: %w", err)
	}

	graded := 0
	for _, contest := range contests {
		if err := ctx.Err(); err != nil {
			return graded, err
		}

		if contest.ActualTotal == nil {
			continue
		}

		exists, err := s.repos.Grading.ExistsForContest(ctx, contest.ID)
		if err != nil {
			return graded, err
		}
		if exists {
			continue
		}

		marketKey := contest.ID.String() + ":" + string(models.ScopeFullContest)
		decision, err := s.repos.Decision.LatestByMarketKey(ctx, marketKey)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return graded, err
		}
		if decision.MarketLine.IsZero() || decision.PickState == models.StatePendingInputs {
			continue
		}

		record := models.NewGradingRecord(
			contest.ID, sportName,
			decision.ClampedEstimate, decision.MarketLine, *contest.ActualTotal,
			sport.MissMinorCut, sport.MissModerateCut, now,
		)
		if err := s.repos.Grading.Insert(ctx, record); err != nil {
			return graded, fmt.Errorf("failed to insert grading for %s: %w", contest.ID, err)
		}

		metrics.RecordGrading(sportName, string(record.Severity))
		graded++
	}

	s.logger.WithFields(logrus.Fields{
		"sport":  sportName,
		"graded": graded,
	}).Info("Contest grading pass complete")

	return graded, nil
}

// BuildSnapshot aggregates the latest grading window into a new
// calibration snapshot, persists it and swaps it in atomically. With
// fewer gradings than the configured minimum the sport enters bootstrap
// mode instead.
func (s *FeedbackService) BuildSnapshot(ctx context.Context, sportName string, now time.Time) (*models.CalibrationSnapshot, error) {
	start := time.Now()
	defer func() {
		metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	}()

	gradings, err := s.repos.Grading.ListSince(ctx, sportName, now.Add(-snapshotWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load gradings: %w", err)
	}

	var snap *models.CalibrationSnapshot
	if len(gradings) < s.cfg.Feedback.MinGradings {
		snap = models.NewBootstrapSnapshot(sportName, now)
		s.logger.WithFields(logrus.Fields{
			"sport":    sportName,
			"gradings": len(gradings),
			"required": s.cfg.Feedback.MinGradings,
		}).Warn("Insufficient gradings, entering bootstrap mode")
	} else {
		snap = aggregateSnapshot(sportName, gradings, now)
	}

	if err := s.repos.Snapshot.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}
	if err := s.repos.Snapshot.Activate(ctx, snap.ID); err != nil {
		return nil, fmt.Errorf("failed to activate snapshot: %w", err)
	}

	s.store.Publish(snap)
	metrics.UpdateSnapshotAge(sportName, 0, snap.BootstrapMode)
	s.audit.LogSnapshotPublished(sportName, snap.ID.String(), snap.BiasVsActual, snap.BiasVsMarket, snap.DampFactor, snap.BootstrapMode, snap.ComputedAt)

	return snap, nil
}

// RunDaily executes the full feedback cycle for every configured sport:
// grade, rebuild the snapshot, refresh the baseline cache.
func (s *FeedbackService) RunDaily(ctx context.Context, now time.Time) error {
	var firstErr error
	for sportName := range s.cfg.Sports {
		if _, err := s.GradeContests(ctx, sportName, now); err != nil {
			s.logger.WithError(err).WithField("sport", sportName).Error("Grading failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := s.BuildSnapshot(ctx, sportName, now); err != nil {
			s.logger.WithError(err).WithField("sport", sportName).Error("Snapshot build failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s.baselines != nil {
			s.baselines.Invalidate(sportName)
		}
	}
	return firstErr
}

// aggregateSnapshot folds a grading window into the next snapshot.
// Records are weighted by miss severity, so one blowout cannot swing the
// bias estimates.
func aggregateSnapshot(sportName string, gradings []*models.GradingRecord, now time.Time) *models.CalibrationSnapshot {
	var weightSum, biasActualSum, biasMarketSum float64
	for _, g := range gradings {
		w := g.Weight.InexactFloat64()
		weightSum += w
		biasActualSum += w * g.ModelError
		biasMarketSum += w * (g.ModelError - g.MarketError)
	}

	biasVsActual := biasActualSum / weightSum
	biasVsMarket := biasMarketSum / weightSum

	snap := models.NewBootstrapSnapshot(sportName, now)
	snap.BootstrapMode = false
	snap.BiasVsActual = biasVsActual
	snap.BiasVsMarket = biasVsMarket
	snap.DampFactor = dampFactorFor(biasVsActual)
	snap.SampleSize = len(gradings)
	return snap
}

// dampFactorFor shrinks the edge damp linearly with observed bias: no
// bias keeps edges intact, ten points of bias hits the 0.6 floor.
func dampFactorFor(biasVsActual float64) float64 {
	damp := 1.0 - math.Abs(biasVsActual)*0.04
	if damp < 0.6 {
		damp = 0.6
	}
	return damp
}
