package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/repository"
	"github.com/yourusername/pickwise/internal/snapshot"
)

func newFeedbackFixture(t *testing.T) (*FeedbackService, *fakeDecisionRepo, *fakeGradingRepo, *fakeContestRepo, *fakeSnapshotRepo, *snapshot.Store) {
	t.Helper()

	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	decisions := &fakeDecisionRepo{}
	gradings := &fakeGradingRepo{}
	contests := newFakeContestRepo()
	snapshots := newFakeSnapshotRepo()
	store := snapshot.NewStore(log)

	repos := &repository.Repositories{
		Decision: decisions,
		Snapshot: snapshots,
		Grading:  gradings,
		Contest:  contests,
	}

	svc := NewFeedbackService(cfg, repos, store, nil, log)
	return svc, decisions, gradings, contests, snapshots, store
}

func finishedContest(sport string, actual float64, start time.Time) *models.Contest {
	return &models.Contest{
		ID:             uuid.New(),
		Sport:          sport,
		HomeTeam:       "home",
		AwayTeam:       "away",
		ScheduledStart: start,
		ActualTotal:    &actual,
		CreatedAt:      start.Add(-24 * time.Hour),
	}
}

func decisionFor(contest *models.Contest, estimate, line float64) *models.DecisionRecord {
	return &models.DecisionRecord{
		ID:              uuid.New(),
		ContestID:       contest.ID,
		MarketKey:       contest.ID.String() + ":" + string(models.ScopeFullContest),
		Sport:           contest.Sport,
		MarketLine:      decimal.NewFromFloat(line),
		RawEstimate:     estimate,
		ClampedEstimate: estimate,
		PickState:       models.StateLean,
		CreatedAt:       contest.ScheduledStart.Add(-2 * time.Hour),
	}
}

func TestGradeContestsClassifiesMisses(t *testing.T) {
	svc, decisions, gradings, contests, _, _ := newFeedbackFixture(t)
	now := time.Now().UTC()

	// Estimate missed the final by 2 points: a MINOR miss under the
	// default basketball cuts.
	contest := finishedContest("basketball", 228.0, now.Add(-6*time.Hour))
	contests.add(contest)
	require.NoError(t, decisions.Append(context.Background(), decisionFor(contest, 230.0, 224.5)))

	graded, err := svc.GradeContests(context.Background(), "basketball", now)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)

	records, err := gradings.ListSince(context.Background(), "basketball", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.InDelta(t, 2.0, record.ModelError, 1e-9)
	assert.InDelta(t, -3.5, record.MarketError, 1e-9)
	assert.Equal(t, models.MissMinor, record.Severity)
	assert.Equal(t, 1.0, record.Weight.InexactFloat64())
}

func TestGradeContestsSkipsGradedAndUndecided(t *testing.T) {
	svc, decisions, gradings, contests, _, _ := newFeedbackFixture(t)
	now := time.Now().UTC()

	// No decision exists for this contest.
	orphan := finishedContest("basketball", 215.0, now.Add(-5*time.Hour))
	contests.add(orphan)

	// This one is already graded.
	graded := finishedContest("basketball", 221.0, now.Add(-8*time.Hour))
	contests.add(graded)
	require.NoError(t, decisions.Append(context.Background(), decisionFor(graded, 219.0, 220.0)))
	require.NoError(t, gradings.Insert(context.Background(), models.NewGradingRecord(
		graded.ID, "basketball", 219.0, decimal.NewFromFloat(220.0), 221.0, 4.0, 8.0, now.Add(-time.Hour))))

	count, err := svc.GradeContests(context.Background(), "basketball", now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBuildSnapshotBootstrapWhenInsufficientGradings(t *testing.T) {
	svc, _, _, _, snapshots, store := newFeedbackFixture(t)
	now := time.Now().UTC()

	snap, err := svc.BuildSnapshot(context.Background(), "basketball", now)
	require.NoError(t, err)

	assert.True(t, snap.BootstrapMode)
	assert.Equal(t, 1.0, snap.DampFactor)

	active, err := snapshots.GetActive(context.Background(), "basketball")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, active.ID)

	pinned, err := store.Active("basketball")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, pinned.ID)
}

func TestBuildSnapshotAggregatesWeightedBias(t *testing.T) {
	svc, _, gradings, _, _, store := newFeedbackFixture(t)
	now := time.Now().UTC()

	// Five records over-estimating by 5 (MINOR under cuts 4/8 is false:
	// 5 > minor cut 4, so MODERATE weight 0.5) and one exact hit.
	for i := 0; i < 5; i++ {
		gradings.Insert(context.Background(), models.NewGradingRecord(
			uuid.New(), "basketball", 230.0, decimal.NewFromFloat(226.0), 225.0, 4.0, 8.0, now.Add(-time.Hour)))
	}
	gradings.Insert(context.Background(), models.NewGradingRecord(
		uuid.New(), "basketball", 225.0, decimal.NewFromFloat(226.0), 225.0, 4.0, 8.0, now.Add(-time.Hour)))

	snap, err := svc.BuildSnapshot(context.Background(), "basketball", now)
	require.NoError(t, err)

	assert.False(t, snap.BootstrapMode)
	assert.Equal(t, 6, snap.SampleSize)

	// Weighted bias: (5 records * 0.5 weight * +5 error) / (5*0.5 + 1*1.5).
	assert.InDelta(t, 12.5/4.0, snap.BiasVsActual, 1e-9)
	assert.Less(t, snap.DampFactor, 1.0)
	assert.GreaterOrEqual(t, snap.DampFactor, 0.6)

	// The swap is visible to the decision path immediately.
	pinned, err := store.Active("basketball")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, pinned.ID)
}
