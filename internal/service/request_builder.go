package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
	"github.com/yourusername/pickwise/internal/paramsvc"
	"github.com/yourusername/pickwise/internal/pipeline"
	"github.com/yourusername/pickwise/internal/repository"
)

// ParamsSource fetches sampling parameters for a contest.
type ParamsSource interface {
	Params(ctx context.Context, contestID uuid.UUID) (*paramsvc.ContestParams, error)
}

// LiveSource exposes the latest in-game state for a contest, if any.
type LiveSource interface {
	Context(contestID uuid.UUID) (pipeline.LiveContext, bool)
}

// CollaboratorRequestBuilder assembles a decision request from the
// rate-parameter service, the odds feed and the live score stream. It
// backs the pending-decision retry sweep.
type CollaboratorRequestBuilder struct {
	cfg      *config.Config
	params   ParamsSource
	lines    pipeline.LineRefresher
	live     LiveSource
	contests repository.ContestRepository
}

// NewCollaboratorRequestBuilder creates a request builder. live may be
// nil when the live feed is disabled.
func NewCollaboratorRequestBuilder(cfg *config.Config, params ParamsSource, lines pipeline.LineRefresher, live LiveSource, contests repository.ContestRepository) *CollaboratorRequestBuilder {
	return &CollaboratorRequestBuilder{
		cfg:      cfg,
		params:   params,
		lines:    lines,
		live:     live,
		contests: contests,
	}
}

// Build reconstructs the request for a previously recorded market key
// with fresh inputs.
func (b *CollaboratorRequestBuilder) Build(ctx context.Context, record *models.DecisionRecord) (pipeline.Request, error) {
	scope, err := scopeFromMarketKey(record.MarketKey)
	if err != nil {
		return pipeline.Request{}, err
	}
	return b.BuildForContest(ctx, record.ContestID, scope)
}

// BuildForContest assembles a fresh decision request for a contest and
// market scope from the upstream collaborators.
func (b *CollaboratorRequestBuilder) BuildForContest(ctx context.Context, contestID uuid.UUID, scope models.MarketScope) (pipeline.Request, error) {
	contest, err := b.contests.GetByID(ctx, contestID)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("failed to load contest %s: %w", contestID, err)
	}

	// An unreachable param service is a data-availability gap, not a build
	// failure: the request goes through without a sampler and the pipeline
	// records it as PENDING_INPUTS for the next sweep.
	var sampler pipeline.Sampler
	var subRates *pipeline.SubComponentRates
	var dataQuality float64
	params, err := b.params.Params(ctx, contestID)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.Request{}, ctx.Err()
		}
	} else {
		sampler = params.Sampler()
		subRates = params.SubRates()
		dataQuality = params.DataQuality
	}

	market, err := b.lines.Refresh(ctx, contestID, scope)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("failed to fetch line for %s/%s: %w", contestID, scope, err)
	}

	var live *pipeline.LiveContext
	if b.live != nil {
		if state, ok := b.live.Context(contestID); ok {
			live = &state
		}
	}

	return pipeline.Request{
		Inputs: pipeline.ContestInputs{
			ContestID:   contest.ID,
			Sport:       contest.Sport,
			HomeSide:    contest.HomeTeam,
			AwaySide:    contest.AwayTeam,
			Sampler:     sampler,
			DataQuality: dataQuality,
		},
		Market:        market,
		ExpectedScope: scope,
		SampleCount:   b.cfg.Simulation.DefaultSampleCount,
		Seed:          DeterministicSeed(contest.ID, time.Now().UTC()),
		SubRates:      subRates,
		Live:          live,
	}, nil
}

// DeterministicSeed derives the simulation seed from contest identity and
// the calendar day, so a same-day replay reproduces the run bit for bit.
func DeterministicSeed(contestID uuid.UUID, now time.Time) int64 {
	h := fnv.New64a()
	h.Write(contestID[:])
	h.Write([]byte(now.Format("2006-01-02")))
	return int64(h.Sum64())
}

func scopeFromMarketKey(marketKey string) (models.MarketScope, error) {
	idx := strings.LastIndex(marketKey, ":")
	if idx < 0 || idx == len(marketKey)-1 {
		return "", fmt.Errorf("malformed market key %q", marketKey)
	}
	return models.MarketScope(marketKey[idx+1:]), nil
}
