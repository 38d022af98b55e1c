// Package scheduler drives the recurring jobs: the daily feedback cycle
// and the pending-decision retry sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/service"
)

// retryBatchSize caps how many pending decisions one sweep re-runs.
const retryBatchSize = 50

// Scheduler manages the recurring feedback and retry jobs.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	feedback  *service.FeedbackService
	decisions *service.DecisionService
	builder   service.RequestBuilder
	logger    *logrus.Entry

	mu        sync.Mutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a scheduler. builder may be nil when the retry
// sweep should not run.
func NewScheduler(cfg *config.Config, feedback *service.FeedbackService, decisions *service.DecisionService, builder service.RequestBuilder, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		cfg:       cfg,
		feedback:  feedback,
		decisions: decisions,
		builder:   builder,
		logger:    logger.WithField("component", "scheduler"),
		jobIDs:    make([]cron.EntryID, 0),
	}
}

// ScheduleFeedbackCycle schedules the daily grade-and-snapshot job.
func (s *Scheduler) ScheduleFeedbackCycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		s.logger.Info("Starting daily feedback cycle")
		if err := s.feedback.RunDaily(ctx, time.Now().UTC()); err != nil {
			s.logger.WithError(err).Error("Daily feedback cycle finished with errors")
			return
		}
		s.logger.Info("Daily feedback cycle completed")
	}

	entryID, err := s.cron.AddFunc(s.cfg.Feedback.SnapshotCron, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add feedback job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", s.cfg.Feedback.SnapshotCron).Info("Scheduled daily feedback cycle")

	return nil
}

// ScheduleRetrySweep schedules the PENDING_INPUTS retry pass.
func (s *Scheduler) ScheduleRetrySweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if s.builder == nil {
		return fmt.Errorf("retry sweep requires a request builder")
	}

	interval := s.cfg.Feedback.RetrySweepSeconds
	if interval < 30 {
		interval = 30
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(interval)*time.Second)
		defer cancel()

		for sport := range s.cfg.Sports {
			retried, err := s.decisions.RetryPending(ctx, sport, retryBatchSize, s.builder)
			if err != nil {
				s.logger.WithError(err).WithField("sport", sport).Error("Retry sweep failed")
				continue
			}
			if retried > 0 {
				s.logger.WithFields(logrus.Fields{
					"sport":   sport,
					"retried": retried,
				}).Info("Retry sweep re-ran pending decisions")
			}
		}
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", interval), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add retry job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("interval_seconds", interval).Info("Scheduled pending-decision retry sweep")

	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}
