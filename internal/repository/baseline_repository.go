package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/pickwise/internal/database"
	"github.com/yourusername/pickwise/internal/models"
)

// PostgresBaselineRepository implements BaselineRepository for PostgreSQL
type PostgresBaselineRepository struct {
	db *database.DB
}

// NewPostgresBaselineRepository creates a new baseline repository
func NewPostgresBaselineRepository(db *database.DB) BaselineRepository {
	return &PostgresBaselineRepository{db: db}
}

// Get retrieves the baseline for a sport
func (r *PostgresBaselineRepository) Get(ctx context.Context, sport string) (*models.HistoricalBaseline, error) {
	query := `
		SELECT sport, mean_total, std_total, mean_pace, mean_points_per_possession, sample_size, updated_at
		FROM historical_baselines
		WHERE sport = $1
	`

	baseline := &models.HistoricalBaseline{}
	err := r.db.Pool().QueryRow(ctx, query, sport).Scan(
		&baseline.Sport, &baseline.MeanTotal, &baseline.StdTotal,
		&baseline.MeanPace, &baseline.MeanPointsPerPossession,
		&baseline.SampleSize, &baseline.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	return baseline, nil
}

// Upsert inserts or replaces the baseline for a sport
func (r *PostgresBaselineRepository) Upsert(ctx context.Context, baseline *models.HistoricalBaseline) error {
	query := `
		INSERT INTO historical_baselines (sport, mean_total, std_total, mean_pace,
		                                  mean_points_per_possession, sample_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sport) DO UPDATE SET
			mean_total = EXCLUDED.mean_total,
			std_total = EXCLUDED.std_total,
			mean_pace = EXCLUDED.mean_pace,
			mean_points_per_possession = EXCLUDED.mean_points_per_possession,
			sample_size = EXCLUDED.sample_size,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		baseline.Sport, baseline.MeanTotal, baseline.StdTotal,
		baseline.MeanPace, baseline.MeanPointsPerPossession,
		baseline.SampleSize, baseline.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}

	return nil
}
