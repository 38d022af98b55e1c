package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/pickwise/internal/models"
)

// DecisionRepository is the append-only decision ledger. There is no
// update or delete: corrections are new records pointing at the original
// via SupersedesID.
type DecisionRepository interface {
	Append(ctx context.Context, record *models.DecisionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error)
	LatestByMarketKey(ctx context.Context, marketKey string) (*models.DecisionRecord, error)
	ListByContest(ctx context.Context, contestID uuid.UUID) ([]*models.DecisionRecord, error)
	ListPending(ctx context.Context, sport string, limit int) ([]*models.DecisionRecord, error)
	ListPublishedSince(ctx context.Context, sport string, since time.Time) ([]*models.DecisionRecord, error)
}

// SnapshotRepository persists calibration snapshots and tracks which one
// is active per sport.
type SnapshotRepository interface {
	Insert(ctx context.Context, snap *models.CalibrationSnapshot) error
	Activate(ctx context.Context, id uuid.UUID) error
	GetActive(ctx context.Context, sport string) (*models.CalibrationSnapshot, error)
	History(ctx context.Context, sport string, limit int) ([]*models.CalibrationSnapshot, error)
}

// BaselineRepository stores per-sport historical distributions.
type BaselineRepository interface {
	Get(ctx context.Context, sport string) (*models.HistoricalBaseline, error)
	Upsert(ctx context.Context, baseline *models.HistoricalBaseline) error
}

// GradingRepository stores per-contest feedback records.
type GradingRepository interface {
	Insert(ctx context.Context, record *models.GradingRecord) error
	ListSince(ctx context.Context, sport string, since time.Time) ([]*models.GradingRecord, error)
	ExistsForContest(ctx context.Context, contestID uuid.UUID) (bool, error)
}

// ContestRepository stores contest identity and final results.
type ContestRepository interface {
	Insert(ctx context.Context, contest *models.Contest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListFinishedSince(ctx context.Context, sport string, since time.Time) ([]*models.Contest, error)
	RecordFinal(ctx context.Context, id uuid.UUID, actualTotal float64) error
}
