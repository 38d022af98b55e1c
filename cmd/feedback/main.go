// Package main provides a one-shot CLI for the feedback loop: grading
// finished contests and publishing calibration snapshots outside the
// daemon's schedule.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/database"
	applogger "github.com/yourusername/pickwise/internal/logger"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/repository"
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
	configFile string
	sportFlag  string
	logger     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
	feedback   *service.FeedbackService
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&sportFlag, "sport", "s", "", "Limit to one sport (default: all configured sports)")
}

var rootCmd = &cobra.Command{
	Use:   "pickwise-feedback",
	Short: "Run the decision feedback loop",
	Long: `Grades finished contests against their recorded decisions and
rebuilds per-sport calibration snapshots from the grading history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade finished contests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return gradeContests(cmd.Context())
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Build and activate calibration snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildSnapshots(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full cycle (grade, then snapshot)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedback.RunDaily(cmd.Context(), time.Now().UTC())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active snapshot for each sport",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pickwise-feedback %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	rootCmd.AddCommand(gradeCmd, snapshotCmd, runCmd, statusCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.ApplySecrets(ctx, cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	logger = applogger.NewLogger(cfg.App.LogLevel)

	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return err
	}

	// The one-shot CLI publishes to a throwaway in-memory store; only the
	// database activation matters, the daemon reloads on its own schedule.
	store := snapshot.NewStore(logger)
	feedback = service.NewFeedbackService(cfg, repos, store, nil, logger)

	return nil
}

func sports() []string {
	if sportFlag != "" {
		return []string{sportFlag}
	}
	names := make([]string, 0, len(cfg.Sports))
	for name := range cfg.Sports {
		names = append(names, name)
	}
	return names
}

func gradeContests(ctx context.Context) error {
	now := time.Now().UTC()
	total := 0
	for _, sport := range sports() {
		count, err := feedback.GradeContests(ctx, sport, now)
		if err != nil {
			logger.WithError(err).WithField("sport", sport).Error("Grading failed")
			return err
		}
		fmt.Printf("%s: graded %d contests\n", sport, count)
		total += count
	}
	fmt.Printf("Graded %d contests in total\n", total)
	return nil
}

func buildSnapshots(ctx context.Context) error {
	now := time.Now().UTC()
	for _, sport := range sports() {
		snap, err := feedback.BuildSnapshot(ctx, sport, now)
		if err != nil {
			logger.WithError(err).WithField("sport", sport).Error("Snapshot build failed")
			return err
		}
		printSnapshot(snap)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	for _, sport := range sports() {
		snap, err := repos.Snapshot.GetActive(ctx, sport)
		if err != nil {
			fmt.Printf("%s: no active snapshot (%v)\n", sport, err)
			continue
		}
		printSnapshot(snap)
	}
	return nil
}

func printSnapshot(snap *models.CalibrationSnapshot) {
	mode := "calibrated"
	if snap.BootstrapMode {
		mode = "bootstrap"
	}
	fmt.Printf("%s: snapshot %s (%s)\n", snap.Sport, snap.ID, mode)
	fmt.Printf("  gradings:       %d\n", snap.SampleSize)
	fmt.Printf("  bias_vs_actual: %+.3f\n", snap.BiasVsActual)
	fmt.Printf("  bias_vs_market: %+.3f\n", snap.BiasVsMarket)
	fmt.Printf("  damp_factor:    %.3f\n", snap.DampFactor)
	fmt.Printf("  computed_at:    %s\n", snap.ComputedAt.Format(time.RFC3339))
}
