package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/pickwise/internal/database"
	"github.com/yourusername/pickwise/internal/models"
)

// PostgresSnapshotRepository implements SnapshotRepository for PostgreSQL
type PostgresSnapshotRepository struct {
	db *database.DB
}

// NewPostgresSnapshotRepository creates a new snapshot repository
func NewPostgresSnapshotRepository(db *database.DB) SnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// Insert stores a new inactive snapshot
func (r *PostgresSnapshotRepository) Insert(ctx context.Context, snap *models.CalibrationSnapshot) error {
	query := `
		INSERT INTO calibration_snapshots (id, sport, bias_vs_actual, bias_vs_market, damp_factor,
		                                   bootstrap_mode, sample_size, computed_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.ID, snap.Sport, snap.BiasVsActual, snap.BiasVsMarket, snap.DampFactor,
		snap.BootstrapMode, snap.SampleSize, snap.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// Activate marks one snapshot active and deactivates the previous one for
// the same sport, in a single transaction.
func (r *PostgresSnapshotRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var sport string
		err := tx.QueryRow(ctx, `SELECT sport FROM calibration_snapshots WHERE id = $1`, id).Scan(&sport)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE calibration_snapshots SET active = FALSE WHERE sport = $1 AND active`, sport); err != nil {
			return fmt.Errorf("failed to deactivate previous snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE calibration_snapshots SET active = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to activate snapshot: %w", err)
		}

		return nil
	})
}

// GetActive retrieves the active snapshot for a sport
func (r *PostgresSnapshotRepository) GetActive(ctx context.Context, sport string) (*models.CalibrationSnapshot, error) {
	query := `
		SELECT id, sport, bias_vs_actual, bias_vs_market, damp_factor, bootstrap_mode, sample_size, computed_at
		FROM calibration_snapshots
		WHERE sport = $1 AND active
	`

	snap := &models.CalibrationSnapshot{}
	err := r.db.Pool().QueryRow(ctx, query, sport).Scan(
		&snap.ID, &snap.Sport, &snap.BiasVsActual, &snap.BiasVsMarket, &snap.DampFactor,
		&snap.BootstrapMode, &snap.SampleSize, &snap.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNoActiveSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active snapshot: %w", err)
	}

	return snap, nil
}

// History retrieves recent snapshots for a sport, newest first
func (r *PostgresSnapshotRepository) History(ctx context.Context, sport string, limit int) ([]*models.CalibrationSnapshot, error) {
	query := `
		SELECT id, sport, bias_vs_actual, bias_vs_market, damp_factor, bootstrap_mode, sample_size, computed_at
		FROM calibration_snapshots
		WHERE sport = $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, sport, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var snaps []*models.CalibrationSnapshot
	for rows.Next() {
		snap := &models.CalibrationSnapshot{}
		err := rows.Scan(
			&snap.ID, &snap.Sport, &snap.BiasVsActual, &snap.BiasVsMarket, &snap.DampFactor,
			&snap.BootstrapMode, &snap.SampleSize, &snap.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}
