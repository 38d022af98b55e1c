package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/paramsvc"
	"github.com/yourusername/pickwise/internal/pipeline"
	"github.com/yourusername/pickwise/internal/repository"
	"github.com/yourusername/pickwise/internal/snapshot"
)

type allowAllResolver struct{}

func (allowAllResolver) Exists(ctx context.Context, id uuid.UUID) (bool, error) { return true, nil }

// gatedBaselineSource optionally blocks the first pipeline run so
// concurrent callers can pile onto one in-flight decision.
type gatedBaselineSource struct {
	release  chan struct{}
	baseline *models.HistoricalBaseline
}

func (g *gatedBaselineSource) Baseline(ctx context.Context, sport string) (*models.HistoricalBaseline, error) {
	if g.release != nil {
		<-g.release
	}
	return g.baseline, nil
}

func basketballBaseline() *models.HistoricalBaseline {
	return &models.HistoricalBaseline{
		Sport:                   "basketball",
		MeanTotal:               224.5,
		StdTotal:                18.0,
		MeanPace:                99.0,
		MeanPointsPerPossession: 1.12,
		SampleSize:              2400,
		UpdatedAt:               time.Now().UTC(),
	}
}

func testSampler() pipeline.Sampler {
	return pipeline.SamplerFunc(func(rng *rand.Rand) pipeline.Outcome {
		return pipeline.Outcome{
			Home: 114 + rng.NormFloat64()*9,
			Away: 110 + rng.NormFloat64()*9,
		}
	})
}

func testRequest(contestID uuid.UUID) pipeline.Request {
	return pipeline.Request{
		Inputs: pipeline.ContestInputs{
			ContestID:   contestID,
			Sport:       "basketball",
			HomeSide:    "home",
			AwaySide:    "away",
			Sampler:     testSampler(),
			DataQuality: 0.95,
		},
		Market: &models.MarketSnapshot{
			ContestID:     contestID,
			Sport:         "basketball",
			LineValue:     decimal.NewFromFloat(220.5),
			LineTimestamp: time.Now().UTC(),
			SourceID:      "book-1",
			SourceType:    models.SourceBookmaker,
			Scope:         models.ScopeFullContest,
		},
		ExpectedScope: models.ScopeFullContest,
		SampleCount:   10000,
		Seed:          42,
	}
}

func newTestService(t *testing.T, baselines pipeline.BaselineSource) (*DecisionService, *fakeDecisionRepo) {
	t.Helper()

	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := snapshot.NewStore(log)
	snap := models.NewBootstrapSnapshot("basketball", time.Now().UTC())
	snap.BootstrapMode = false
	snap.DampFactor = 1.0
	snap.SampleSize = 200
	store.Publish(snap)

	pipe, err := pipeline.New(cfg, allowAllResolver{}, store, baselines, nil, log)
	require.NoError(t, err)

	decisions := &fakeDecisionRepo{}
	repos := &repository.Repositories{Decision: decisions}
	return NewDecisionService(cfg, pipe, repos, log), decisions
}

func TestDecidePersistsRecord(t *testing.T) {
	svc, decisions := newTestService(t, &gatedBaselineSource{baseline: basketballBaseline()})

	record, err := svc.Decide(context.Background(), testRequest(uuid.New()))
	require.NoError(t, err)

	assert.True(t, record.PickState.Valid())
	assert.Equal(t, 1, decisions.count())

	stored, err := decisions.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.MarketKey, stored.MarketKey)
	assert.Equal(t, 220.5, stored.MarketLine.InexactFloat64())
}

func TestDecideCollapsesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	svc, decisions := newTestService(t, &gatedBaselineSource{release: release, baseline: basketballBaseline()})

	contestID := uuid.New()
	const callers = 5

	var wg sync.WaitGroup
	results := make([]*models.DecisionRecord, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := svc.Decide(context.Background(), testRequest(contestID))
			if err == nil {
				results[i] = record
			}
		}(i)
	}

	// Let every caller reach the singleflight before the first run can
	// proceed past the baseline load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, decisions.count())
	for i := 1; i < callers; i++ {
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
}

func TestCorrectSupersedesLatestRecord(t *testing.T) {
	svc, decisions := newTestService(t, &gatedBaselineSource{baseline: basketballBaseline()})

	contestID := uuid.New()
	original, err := svc.Decide(context.Background(), testRequest(contestID))
	require.NoError(t, err)

	correction, err := svc.Correct(context.Background(), testRequest(contestID))
	require.NoError(t, err)

	require.NotNil(t, correction.SupersedesID)
	assert.Equal(t, original.ID, *correction.SupersedesID)
	assert.NotEqual(t, original.ID, correction.ID)
	assert.Equal(t, 2, decisions.count())
}

// flakyParams fails a set number of fetches before serving parameters,
// standing in for a param service that lags the odds feed.
type flakyParams struct {
	mu       sync.Mutex
	failures int
	params   paramsvc.ContestParams
}

func (f *flakyParams) Params(ctx context.Context, contestID uuid.UUID) (*paramsvc.ContestParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("param service unavailable")
	}
	p := f.params
	p.ContestID = contestID
	return &p, nil
}

type staticLines struct {
	line float64
}

func (s *staticLines) Refresh(ctx context.Context, contestID uuid.UUID, scope models.MarketScope) (*models.MarketSnapshot, error) {
	return &models.MarketSnapshot{
		ContestID:     contestID,
		Sport:         "basketball",
		LineValue:     decimal.NewFromFloat(s.line),
		LineTimestamp: time.Now().UTC(),
		SourceID:      "book-1",
		SourceType:    models.SourceBookmaker,
		Scope:         scope,
	}, nil
}

func TestPendingInputsRecordedAndRetried(t *testing.T) {
	svc, decisions := newTestService(t, &gatedBaselineSource{baseline: basketballBaseline()})

	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)

	contestID := uuid.New()
	contests := newFakeContestRepo()
	contests.add(&models.Contest{
		ID:             contestID,
		Sport:          "basketball",
		HomeTeam:       "home",
		AwayTeam:       "away",
		ScheduledStart: time.Now().UTC().Add(2 * time.Hour),
	})

	params := &flakyParams{
		failures: 1,
		params: paramsvc.ContestParams{
			Sport:       "basketball",
			HomeMean:    114,
			HomeStd:     9,
			AwayMean:    110,
			AwayStd:     9,
			DataQuality: 0.95,
		},
	}
	builder := NewCollaboratorRequestBuilder(cfg, params, &staticLines{line: 220.5}, nil, contests)

	// The param service is down for the first build: the request carries no
	// sampler and the decision lands as PENDING_INPUTS instead of failing.
	req, err := builder.BuildForContest(context.Background(), contestID, models.ScopeFullContest)
	require.NoError(t, err)
	assert.Nil(t, req.Inputs.Sampler)

	pending, err := svc.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingInputs, pending.PickState)
	assert.Equal(t, 1, decisions.count())

	// The sweep finds the pending record, rebuilds with the now-available
	// parameters and supersedes it with a computed decision.
	retried, err := svc.RetryPending(context.Background(), "basketball", 10, builder)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	latest, err := decisions.LatestByMarketKey(context.Background(), pending.MarketKey)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatePendingInputs, latest.PickState)
	require.NotNil(t, latest.SupersedesID)
	assert.Equal(t, pending.ID, *latest.SupersedesID)

	swept, err := decisions.ListPending(context.Background(), "basketball", 10)
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestDecideStructuralFailureWritesNothing(t *testing.T) {
	svc, decisions := newTestService(t, &gatedBaselineSource{baseline: basketballBaseline()})

	req := testRequest(uuid.New())
	req.Market.LineValue = decimal.Zero

	_, err := svc.Decide(context.Background(), req)
	require.Error(t, err)
	assert.True(t, models.IsStructural(err))
	assert.Equal(t, 0, decisions.count())
}
