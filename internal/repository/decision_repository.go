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

// PostgresDecisionRepository implements DecisionRepository for PostgreSQL
type PostgresDecisionRepository struct {
	db *database.DB
}

// NewPostgresDecisionRepository creates a new decision repository
func NewPostgresDecisionRepository(db *database.DB) DecisionRepository {
	return &PostgresDecisionRepository{db: db}
}

const decisionColumns = `
	id, contest_id, market_key, sport, market_line, raw_estimate, clamped_estimate,
	calibrated_probability, calibrated_edge, confidence_score, variance_z,
	pick_state, block_reasons, model_hash, config_hash, triggers,
	stamped_at, supersedes_id, created_at
`

// Append inserts a new decision record. The ledger is insert-only; a
// duplicate id maps to ErrDuplicateKey.
func (r *PostgresDecisionRepository) Append(ctx context.Context, record *models.DecisionRecord) error {
	query := `
		INSERT INTO decisions (id, contest_id, market_key, sport, market_line, raw_estimate, clamped_estimate,
		                       calibrated_probability, calibrated_edge, confidence_score, variance_z,
		                       pick_state, block_reasons, model_hash, config_hash, triggers,
		                       stamped_at, supersedes_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		record.ID, record.ContestID, record.MarketKey, record.Sport, record.MarketLine,
		record.RawEstimate, record.ClampedEstimate,
		record.CalibratedProbability, record.CalibratedEdge, record.ConfidenceScore, record.VarianceZ,
		record.PickState, record.BlockReasons,
		record.Stamp.ModelHash, record.Stamp.ConfigHash, record.Stamp.Triggers, record.Stamp.Timestamp,
		record.SupersedesID, record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to append decision: %w", err)
	}

	return nil
}

// GetByID retrieves a decision record by ID
func (r *PostgresDecisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = $1`

	record, err := scanDecision(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	return record, nil
}

// LatestByMarketKey retrieves the most recent decision for a market key,
// corrections included.
func (r *PostgresDecisionRepository) LatestByMarketKey(ctx context.Context, marketKey string) (*models.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE market_key = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	record, err := scanDecision(r.db.Pool().QueryRow(ctx, query, marketKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest decision: %w", err)
	}

	return record, nil
}

// ListByContest retrieves all decisions for a contest, newest first.
func (r *PostgresDecisionRepository) ListByContest(ctx context.Context, contestID uuid.UUID) ([]*models.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE contest_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions by contest: %w", err)
	}
	defer rows.Close()

	return collectDecisions(rows)
}

// ListPending retrieves the newest PENDING_INPUTS decision per market key
// for the retry sweep. Market keys that already have a later terminal
// decision are excluded.
func (r *PostgresDecisionRepository) ListPending(ctx context.Context, sport string, limit int) ([]*models.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM (
			SELECT DISTINCT ON (market_key) ` + decisionColumns + `
			FROM decisions
			WHERE sport = $1
			ORDER BY market_key, created_at DESC
		) latest
		WHERE pick_state = $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, sport, models.StatePendingInputs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending decisions: %w", err)
	}
	defer rows.Close()

	return collectDecisions(rows)
}

// ListPublishedSince retrieves PICK and LEAN decisions created after a
// cutoff, oldest first.
func (r *PostgresDecisionRepository) ListPublishedSince(ctx context.Context, sport string, since time.Time) ([]*models.DecisionRecord, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE sport = $1 AND created_at >= $2 AND pick_state IN ($3, $4)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, sport, since, models.StatePick, models.StateLean)
	if err != nil {
		return nil, fmt.Errorf("failed to query published decisions: %w", err)
	}
	defer rows.Close()

	return collectDecisions(rows)
}

func scanDecision(row pgx.Row) (*models.DecisionRecord, error) {
	record := &models.DecisionRecord{}
	err := row.Scan(
		&record.ID, &record.ContestID, &record.MarketKey, &record.Sport, &record.MarketLine,
		&record.RawEstimate, &record.ClampedEstimate,
		&record.CalibratedProbability, &record.CalibratedEdge, &record.ConfidenceScore, &record.VarianceZ,
		&record.PickState, &record.BlockReasons,
		&record.Stamp.ModelHash, &record.Stamp.ConfigHash, &record.Stamp.Triggers, &record.Stamp.Timestamp,
		&record.SupersedesID, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func collectDecisions(rows pgx.Rows) ([]*models.DecisionRecord, error) {
	var records []*models.DecisionRecord
	for rows.Next() {
		record, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
