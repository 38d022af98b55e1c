// Package service composes the decision pipeline with persistence,
// collaborator clients and the feedback loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/metrics"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/pipeline"
	"github.com/yourusername/pickwise/internal/repository"
)

// DecisionService runs decisions through the pipeline, serializes them
// per market key and appends the results to the ledger. Concurrent
// requests for the same market key collapse into one pipeline run; every
// caller receives the same record.
type DecisionService struct {
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	repos  *repository.Repositories
	group  singleflight.Group
	logger *logrus.Entry
}

// NewDecisionService creates a decision service.
func NewDecisionService(cfg *config.Config, pipe *pipeline.Pipeline, repos *repository.Repositories, logger *logrus.Logger) *DecisionService {
	return &DecisionService{
		cfg:    cfg,
		pipe:   pipe,
		repos:  repos,
		logger: logger.WithField("component", "decision_service"),
	}
}

// Decide runs one decision and persists the record. Structural and
// simulation failures propagate with nothing written.
func (s *DecisionService) Decide(ctx context.Context, req pipeline.Request) (*models.DecisionRecord, error) {
	key := requestKey(req)

	result, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.runAndPersist(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.WithField("market_key", key).Debug("Joined in-flight decision")
	}

	return result.(*models.DecisionRecord), nil
}

func (s *DecisionService) runAndPersist(ctx context.Context, req pipeline.Request) (*models.DecisionRecord, error) {
	start := time.Now()
	defer func() {
		metrics.DecisionDuration.Observe(time.Since(start).Seconds())
	}()

	record, err := s.pipe.Run(ctx, req)
	if err != nil {
		var se *models.StructuralError
		if errors.As(err, &se) {
			metrics.RecordStructuralFailure(req.Inputs.Sport, se.Reason)
		} else if models.IsSimulation(err) {
			metrics.RecordSimulationFailure()
		}
		return nil, err
	}

	if err := s.repos.Decision.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist decision %s: %w", record.ID, err)
	}

	metrics.RecordDecision(record.Sport, string(record.PickState))
	return record, nil
}

// Correct re-runs a market key as a correction. The new record supersedes
// the most recent decision for the key; the original is never touched.
func (s *DecisionService) Correct(ctx context.Context, req pipeline.Request) (*models.DecisionRecord, error) {
	previous, err := s.repos.Decision.LatestByMarketKey(ctx, requestKey(req))
	if err != nil {
		return nil, fmt.Errorf("no decision to correct: %w", err)
	}

	req.SupersedesID = &previous.ID
	return s.Decide(ctx, req)
}

// RequestBuilder reconstructs a full decision request for a market key,
// pulling fresh inputs from the upstream collaborators.
type RequestBuilder interface {
	Build(ctx context.Context, record *models.DecisionRecord) (pipeline.Request, error)
}

// RetryPending re-runs the newest PENDING_INPUTS decision per market key.
// Each retry supersedes the pending record whether or not the inputs have
// arrived; a still-incomplete market simply produces another
// PENDING_INPUTS record.
func (s *DecisionService) RetryPending(ctx context.Context, sport string, limit int, builder RequestBuilder) (int, error) {
	pending, err := s.repos.Decision.ListPending(ctx, sport, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending decisions: %w", err)
	}

	retried := 0
	for _, record := range pending {
		if err := ctx.Err(); err != nil {
			return retried, err
		}

		req, err := builder.Build(ctx, record)
		if err != nil {
			s.logger.WithError(err).WithField("market_key", record.MarketKey).Warn("Skipping pending decision, inputs unavailable")
			continue
		}
		req.SupersedesID = &record.ID

		if _, err := s.Decide(ctx, req); err != nil {
			s.logger.WithError(err).WithField("market_key", record.MarketKey).Warn("Pending decision retry failed")
			continue
		}

		metrics.DecisionRetriesTotal.Inc()
		retried++
	}

	return retried, nil
}

// History returns every decision for a contest, newest first.
func (s *DecisionService) History(ctx context.Context, contestID uuid.UUID) ([]*models.DecisionRecord, error) {
	return s.repos.Decision.ListByContest(ctx, contestID)
}

func requestKey(req pipeline.Request) string {
	if req.Market != nil {
		return req.Market.MarketKey()
	}
	return req.Inputs.ContestID.String() + ":" + string(req.ExpectedScope)
}
