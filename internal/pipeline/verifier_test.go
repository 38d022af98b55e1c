package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// staticResolver resolves a fixed set of contest IDs.
type staticResolver struct {
	known map[uuid.UUID]bool
	err   error
}

func (r *staticResolver) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.known[id], nil
}

func basketballSport(t *testing.T) config.SportConfig {
	t.Helper()
	cfg, err := config.LoadWithDefaults("")
	require.NoError(t, err)
	sport, err := cfg.Sport("basketball")
	require.NoError(t, err)
	return sport
}

func validSnapshot(contestID uuid.UUID, now time.Time) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		ContestID:     contestID,
		Sport:         "basketball",
		LineValue:     decimal.NewFromFloat(224.5),
		LineTimestamp: now.Add(-2 * time.Hour),
		SourceID:      "book-7",
		SourceType:    models.SourceBookmaker,
		Scope:         models.ScopeFullContest,
	}
}

func newTestVerifier(known ...uuid.UUID) *Verifier {
	resolver := &staticResolver{known: make(map[uuid.UUID]bool)}
	for _, id := range known {
		resolver.known[id] = true
	}
	return NewVerifier(resolver, testLogger())
}

func TestVerifyAcceptsValidSnapshot(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	result, err := verifier.Verify(context.Background(), validSnapshot(contestID, now), basketballSport(t), models.ScopeFullContest, now)
	require.NoError(t, err)

	assert.False(t, result.Stale)
	assert.False(t, result.PublishForbidden)
	assert.Empty(t, result.Warnings)
	assert.InDelta(t, 2.0, result.AgeHours, 0.01)
}

func TestVerifyRejectsMissingLine(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	snap := validSnapshot(contestID, now)
	snap.LineValue = decimal.Zero

	_, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.True(t, models.IsStructural(err))
	assert.True(t, errors.Is(err, models.ErrLineMissing))

	_, err = verifier.Verify(context.Background(), nil, basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrLineMissing))
}

func TestVerifyRejectsImplausibleLine(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	tests := []struct {
		name string
		line float64
	}{
		{"below range", 95.0},
		{"above range", 400.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot(contestID, now)
			snap.LineValue = decimal.NewFromFloat(tt.line)

			_, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopeFullContest, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrLineImplausible))
		})
	}
}

func TestVerifyRejectsScopeReuse(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	snap := validSnapshot(contestID, now)
	snap.Scope = models.ScopePartialPeriod

	_, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrScopeMismatch))
}

func TestVerifyRejectsMissingSource(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	snap := validSnapshot(contestID, now)
	snap.SourceID = ""

	_, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSourceMissing))
}

func TestVerifyRejectsUnknownContest(t *testing.T) {
	now := time.Now().UTC()
	verifier := newTestVerifier() // resolves nothing

	_, err := verifier.Verify(context.Background(), validSnapshot(uuid.New(), now), basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrContestNotFound))
}

func TestVerifyMarksStaleLine(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	snap := validSnapshot(contestID, now)
	snap.LineTimestamp = now.Add(-30 * time.Hour)

	result, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopeFullContest, now)
	require.NoError(t, err, "staleness is a warning, not a failure")
	assert.True(t, result.Stale)
	assert.NotEmpty(t, result.Warnings)
}

func TestVerifyForbidsPartialPeriodWithoutBookmaker(t *testing.T) {
	now := time.Now().UTC()
	contestID := uuid.New()
	verifier := newTestVerifier(contestID)

	snap := validSnapshot(contestID, now)
	snap.Scope = models.ScopePartialPeriod
	snap.SourceType = models.SourceModel

	result, err := verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopePartialPeriod, now)
	require.NoError(t, err)
	assert.True(t, result.PublishForbidden)

	// A bookmaker-sourced partial line publishes normally.
	snap.SourceType = models.SourceBookmaker
	result, err = verifier.Verify(context.Background(), snap, basketballSport(t), models.ScopePartialPeriod, now)
	require.NoError(t, err)
	assert.False(t, result.PublishForbidden)
}

func TestVerifyResolverFailurePropagates(t *testing.T) {
	now := time.Now().UTC()
	resolver := &staticResolver{err: errors.New("connection refused")}
	verifier := NewVerifier(resolver, testLogger())

	_, err := verifier.Verify(context.Background(), validSnapshot(uuid.New(), now), basketballSport(t), models.ScopeFullContest, now)
	require.Error(t, err)
	assert.False(t, models.IsStructural(err), "infrastructure failures are not structural rejections")
}
