package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/pickwise/internal/database"
	"github.com/yourusername/pickwise/internal/models"
)

// PostgresGradingRepository implements GradingRepository for PostgreSQL
type PostgresGradingRepository struct {
	db *database.DB
}

// NewPostgresGradingRepository creates a new grading repository
func NewPostgresGradingRepository(db *database.DB) GradingRepository {
	return &PostgresGradingRepository{db: db}
}

// Insert stores a new grading record
func (r *PostgresGradingRepository) Insert(ctx context.Context, record *models.GradingRecord) error {
	query := `
		INSERT INTO grading_records (id, contest_id, sport, model_estimate, market_line, actual_total,
		                             model_error, market_error, severity, weight, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		record.ID, record.ContestID, record.Sport, record.ModelEstimate, record.MarketLine,
		record.ActualTotal, record.ModelError, record.MarketError, record.Severity,
		record.Weight, record.GradedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert grading record: %w", err)
	}

	return nil
}

// ListSince retrieves grading records graded after a cutoff, oldest first
func (r *PostgresGradingRepository) ListSince(ctx context.Context, sport string, since time.Time) ([]*models.GradingRecord, error) {
	query := `
		SELECT id, contest_id, sport, model_estimate, market_line, actual_total,
		       model_error, market_error, severity, weight, graded_at
		FROM grading_records
		WHERE sport = $1 AND graded_at >= $2
		ORDER BY graded_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, sport, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query grading records: %w", err)
	}
	defer rows.Close()

	var records []*models.GradingRecord
	for rows.Next() {
		record := &models.GradingRecord{}
		err := rows.Scan(
			&record.ID, &record.ContestID, &record.Sport, &record.ModelEstimate, &record.MarketLine,
			&record.ActualTotal, &record.ModelError, &record.MarketError, &record.Severity,
			&record.Weight, &record.GradedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grading record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ExistsForContest reports whether a contest has already been graded
func (r *PostgresGradingRepository) ExistsForContest(ctx context.Context, contestID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM grading_records WHERE contest_id = $1)`, contestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grading existence: %w", err)
	}
	return exists, nil
}
