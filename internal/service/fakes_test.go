package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/pickwise/internal/models"
)

// fakeDecisionRepo is an in-memory append-only ledger.
type fakeDecisionRepo struct {
	mu      sync.Mutex
	records []*models.DecisionRecord
	appends int
}

func (f *fakeDecisionRepo) Append(ctx context.Context, record *models.DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == record.ID {
			return models.ErrDuplicateKey
		}
	}
	f.records = append(f.records, record)
	f.appends++
	return nil
}

func (f *fakeDecisionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeDecisionRepo) LatestByMarketKey(ctx context.Context, marketKey string) (*models.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].MarketKey == marketKey {
			return f.records[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeDecisionRepo) ListByContest(ctx context.Context, contestID uuid.UUID) ([]*models.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DecisionRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].ContestID == contestID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *fakeDecisionRepo) ListPending(ctx context.Context, sport string, limit int) ([]*models.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := make(map[string]*models.DecisionRecord)
	for _, r := range f.records {
		if r.Sport == sport {
			latest[r.MarketKey] = r
		}
	}
	var out []*models.DecisionRecord
	for _, r := range latest {
		if r.PickState == models.StatePendingInputs && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDecisionRepo) ListPublishedSince(ctx context.Context, sport string, since time.Time) ([]*models.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DecisionRecord
	for _, r := range f.records {
		if r.Sport == sport && !r.CreatedAt.Before(since) && r.PickState.Publishable() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDecisionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

// fakeSnapshotRepo stores snapshots and a single active id per sport.
type fakeSnapshotRepo struct {
	mu     sync.Mutex
	snaps  map[uuid.UUID]*models.CalibrationSnapshot
	active map[string]uuid.UUID
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{
		snaps:  make(map[uuid.UUID]*models.CalibrationSnapshot),
		active: make(map[string]uuid.UUID),
	}
}

func (f *fakeSnapshotRepo) Insert(ctx context.Context, snap *models.CalibrationSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[snap.ID] = snap
	return nil
}

func (f *fakeSnapshotRepo) Activate(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[id]
	if !ok {
		return models.ErrNotFound
	}
	f.active[snap.Sport] = id
	return nil
}

func (f *fakeSnapshotRepo) GetActive(ctx context.Context, sport string) (*models.CalibrationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.active[sport]
	if !ok {
		return nil, models.ErrNoActiveSnapshot
	}
	return f.snaps[id], nil
}

func (f *fakeSnapshotRepo) History(ctx context.Context, sport string, limit int) ([]*models.CalibrationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CalibrationSnapshot
	for _, snap := range f.snaps {
		if snap.Sport == sport && len(out) < limit {
			out = append(out, snap)
		}
	}
	return out, nil
}

// fakeGradingRepo stores grading records in memory.
type fakeGradingRepo struct {
	mu      sync.Mutex
	records []*models.GradingRecord
}

func (f *fakeGradingRepo) Insert(ctx context.Context, record *models.GradingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeGradingRepo) ListSince(ctx context.Context, sport string, since time.Time) ([]*models.GradingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.GradingRecord
	for _, r := range f.records {
		if r.Sport == sport && !r.GradedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGradingRepo) ExistsForContest(ctx context.Context, contestID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ContestID == contestID {
			return true, nil
		}
	}
	return false, nil
}

// fakeContestRepo stores contests in memory.
type fakeContestRepo struct {
	mu       sync.Mutex
	contests map[uuid.UUID]*models.Contest
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{contests: make(map[uuid.UUID]*models.Contest)}
}

func (f *fakeContestRepo) add(c *models.Contest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contests[c.ID] = c
}

func (f *fakeContestRepo) Insert(ctx context.Context, c *models.Contest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contests[c.ID]; ok {
		return models.ErrDuplicateKey
	}
	f.contests[c.ID] = c
	return nil
}

func (f *fakeContestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (f *fakeContestRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.contests[id]
	return ok, nil
}

func (f *fakeContestRepo) ListFinishedSince(ctx context.Context, sport string, since time.Time) ([]*models.Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Contest
	for _, c := range f.contests {
		if c.Sport == sport && c.Finished() && !c.ScheduledStart.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContestRepo) RecordFinal(ctx context.Context, id uuid.UUID, actualTotal float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[id]
	if !ok {
		return models.ErrNotFound
	}
	c.ActualTotal = &actualTotal
	return nil
}
