package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/pickwise/internal/database"
	"github.com/yourusername/pickwise/internal/models"
)

// PostgresContestRepository implements ContestRepository for PostgreSQL
type PostgresContestRepository struct {
	db *database.DB
}

// NewPostgresContestRepository creates a new contest repository
func NewPostgresContestRepository(db *database.DB) ContestRepository {
	return &PostgresContestRepository{db: db}
}

// Insert registers a contest
func (r *PostgresContestRepository) Insert(ctx context.Context, contest *models.Contest) error {
	query := `
		INSERT INTO contests (id, sport, home_team, away_team, scheduled_start, actual_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		contest.ID, contest.Sport, contest.HomeTeam, contest.AwayTeam,
		contest.ScheduledStart, contest.ActualTotal, contest.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	return nil
}

// GetByID retrieves a contest by ID
func (r *PostgresContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	query := `
		SELECT id, sport, home_team, away_team, scheduled_start, actual_total, created_at
		FROM contests WHERE id = $1
	`

	contest := &models.Contest{}
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&contest.ID, &contest.Sport, &contest.HomeTeam, &contest.AwayTeam,
		&contest.ScheduledStart, &contest.ActualTotal, &contest.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}

	return contest, nil
}

// Exists reports whether a contest is registered
func (r *PostgresContestRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM contests WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contest existence: %w", err)
	}
	return exists, nil
}

// ListFinishedSince retrieves contests with a known final total that
// started after a cutoff.
func (r *PostgresContestRepository) ListFinishedSince(ctx context.Context, sport string, since time.Time) ([]*models.Contest, error) {
	query := `
		SELECT id, sport, home_team, away_team, scheduled_start, actual_total, created_at
		FROM contests
		WHERE sport = $1 AND scheduled_start >= $2 AND actual_total IS NOT NULL
		ORDER BY scheduled_start ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, sport, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query finished contests: %w", err)
	}
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		contest := &models.Contest{}
		err := rows.Scan(
			&contest.ID, &contest.Sport, &contest.HomeTeam, &contest.AwayTeam,
			&contest.ScheduledStart, &contest.ActualTotal, &contest.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		contests = append(contests, contest)
	}

	return contests, rows.Err()
}

// RecordFinal stores the final combined score for a contest
func (r *PostgresContestRepository) RecordFinal(ctx context.Context, id uuid.UUID, actualTotal float64) error {
	commandTag, err := r.db.Pool().Exec(ctx,
		`UPDATE contests SET actual_total = $2 WHERE id = $1`, id, actualTotal)
	if err != nil {
		return fmt.Errorf("failed to record final total: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
