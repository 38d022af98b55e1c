// Package main provides the entry point for the decision pipeline daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/database"
	"github.com/yourusername/pickwise/internal/health"
	"github.com/yourusername/pickwise/internal/livefeed"
	"github.com/yourusername/pickwise/internal/logger"
	"github.com/yourusername/pickwise/internal/metrics"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/oddsfeed"
	"github.com/yourusername/pickwise/internal/paramsvc"
	"github.com/yourusername/pickwise/internal/pipeline"
	"github.com/yourusername/pickwise/internal/repository"
	"github.com/yourusername/pickwise/internal/scheduler"
	"github.com/yourusername/pickwise/internal/service"
	"github.com/yourusername/pickwise/internal/snapshot"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile  string
	decideScope string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	decideCmd.Flags().StringVarP(&decideScope, "scope", "s", string(models.ScopeFullContest), "Market scope to decide")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "pickwise-pipeline",
	Short: "Run the totals decision pipeline",
	Long: `Runs the simulation-to-decision pipeline: verifies market inputs,
simulates contest outcomes, calibrates the results against feedback
history and records classified decisions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline as a long-lived daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var decideCmd = &cobra.Command{
	Use:   "decide <contest-id>",
	Short: "Run one decision for a contest and print the record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contestID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid contest id %q: %w", args[0], err)
		}
		return decide(contestID, models.MarketScope(decideScope))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pickwise-pipeline %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

// baselineProvider bridges the baseline repository into the cache's
// provider interface.
type baselineProvider struct {
	repo repository.BaselineRepository
}

func (p baselineProvider) Baseline(ctx context.Context, sport string) (*models.HistoricalBaseline, error) {
	return p.repo.Get(ctx, sport)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// app holds the wired collaborators shared by the serve and decide
// commands. The live feed, scheduler and servers are daemon-only and
// stay in serve.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	db        *database.DB
	repos     *repository.Repositories
	odds      *oddsfeed.Client
	params    *paramsvc.Client
	store     *snapshot.Store
	baselines *snapshot.BaselineCache
	decisions *service.DecisionService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithDefaults(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return nil, fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.ApplySecrets(ctx, cfg, region, secretName); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)

	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	odds := oddsfeed.NewClient(cfg.OddsFeed, appLog)

	params, err := paramsvc.NewClient(cfg.ParamService, appLog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to param service: %w", err)
	}

	// Snapshot store, seeded from the database; a sport with no stored
	// snapshot starts in bootstrap mode.
	store := snapshot.NewStore(appLog)
	for sportName := range cfg.Sports {
		snap, err := repos.Snapshot.GetActive(ctx, sportName)
		if err != nil {
			appLog.WithError(err).WithField("sport", sportName).Warn("No stored snapshot, starting in bootstrap mode")
			snap = models.NewBootstrapSnapshot(sportName, time.Now().UTC())
		}
		store.Publish(snap)
	}

	baselines := snapshot.NewBaselineCache(
		baselineProvider{repos.Baseline},
		time.Duration(cfg.Feedback.BaselineTTLHours)*time.Hour,
	)

	pipe, err := pipeline.New(cfg, repos.Contest, store, baselines, odds, appLog)
	if err != nil {
		params.Close()
		db.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &app{
		cfg:       cfg,
		log:       appLog,
		db:        db,
		repos:     repos,
		odds:      odds,
		params:    params,
		store:     store,
		baselines: baselines,
		decisions: service.NewDecisionService(cfg, pipe, repos, appLog),
	}, nil
}

func (a *app) Close() {
	a.params.Close()
	a.odds.Close()
	a.db.Close()
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.WithFields(logrus.Fields{
		"environment":   a.cfg.App.Environment,
		"model_version": a.cfg.App.ModelVersion,
		"version":       Version,
	}).Info("Pickwise pipeline starting")

	var live *livefeed.Stream
	if a.cfg.LiveFeed.Enabled && a.cfg.Features.LiveContextEnabled {
		live = livefeed.NewStream(a.cfg.LiveFeed, a.log)
		go func() {
			if err := live.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.WithError(err).Error("Live feed stopped")
			}
		}()
	}

	feedback := service.NewFeedbackService(a.cfg, a.repos, a.store, a.baselines, a.log)

	var liveSource service.LiveSource
	if live != nil {
		liveSource = live
	}
	builder := service.NewCollaboratorRequestBuilder(a.cfg, a.params, a.odds, liveSource, a.repos.Contest)

	sched := scheduler.NewScheduler(a.cfg, feedback, a.decisions, builder, a.log)
	if err := sched.ScheduleFeedbackCycle(); err != nil {
		return err
	}
	if err := sched.ScheduleRetrySweep(); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if a.cfg.Metrics.Enabled {
		metrics.InitRegistry()
		go func() {
			mux := http.NewServeMux()
			mux.Handle(a.cfg.Metrics.Path, metrics.Handler())
			addr := fmt.Sprintf(":%d", a.cfg.Metrics.Port)
			a.log.WithField("addr", addr).Info("Metrics server starting")
			server := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second}
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.WithError(err).Error("Metrics server error")
			}
		}()
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: a.cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      a.log,
		DB:          a.db,
	})
	healthServer.AddDependency("param_service", a.params.Healthy)
	healthServer.AddDependency("snapshots", a.store.FreshnessCheck(time.Duration(a.cfg.Feedback.SnapshotMaxAgeHours)*time.Hour))
	if err := healthServer.Start(ctx); err != nil {
		return err
	}
	healthServer.SetReady(true)

	a.log.Info("Pickwise pipeline ready")
	<-ctx.Done()
	a.log.Info("Shutting down")

	return nil
}

func decide(contestID uuid.UUID, scope models.MarketScope) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	builder := service.NewCollaboratorRequestBuilder(a.cfg, a.params, a.odds, nil, a.repos.Contest)
	req, err := builder.BuildForContest(ctx, contestID, scope)
	if err != nil {
		return err
	}

	record, err := a.decisions.Decide(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Decision %s\n", record.ID)
	fmt.Printf("  Market:      %s\n", record.MarketKey)
	fmt.Printf("  Line:        %s\n", record.MarketLine)
	fmt.Printf("  Estimate:    %.1f (raw %.1f)\n", record.ClampedEstimate, record.RawEstimate)
	fmt.Printf("  Probability: %.3f\n", record.CalibratedProbability)
	fmt.Printf("  Edge:        %.2f\n", record.CalibratedEdge)
	fmt.Printf("  Confidence:  %.1f\n", record.ConfidenceScore)
	fmt.Printf("  State:       %s\n", record.PickState)
	if len(record.BlockReasons) > 0 {
		fmt.Printf("  Reasons:     %s\n", strings.Join(record.BlockReasons, ", "))
	}
	fmt.Printf("  Model:       %s / config %s\n", record.Stamp.ModelHash, record.Stamp.ConfigHash)
	return nil
}
