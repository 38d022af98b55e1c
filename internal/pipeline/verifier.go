package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/config"
	"github.com/yourusername/pickwise/internal/models"
)

// ContestResolver checks that a referenced contest exists. Backed by the
// contest repository in production, by fakes in tests.
type ContestResolver interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Verifier validates the pricing input a simulation will be checked
// against. Hard failures abort the pipeline before any sampling happens;
// soft conditions attach warnings and let the pipeline proceed.
type Verifier struct {
	resolver ContestResolver
	logger   *logrus.Logger
}

// NewVerifier creates a market integrity verifier.
func NewVerifier(resolver ContestResolver, logger *logrus.Logger) *Verifier {
	return &Verifier{resolver: resolver, logger: logger}
}

// Verify checks the market snapshot against the sport's plausibility table
// and the expected scope. A returned *models.StructuralError means the
// pipeline must halt before simulation.
func (v *Verifier) Verify(ctx context.Context, snapshot *models.MarketSnapshot, sport config.SportConfig, expectedScope models.MarketScope, now time.Time) (*models.VerificationResult, error) {
	if snapshot == nil || !snapshot.HasLine() {
		return nil, models.NewStructuralError("line missing", models.ErrLineMissing)
	}

	line := snapshot.Line()
	if line < sport.LineMin || line > sport.LineMax {
		return nil, models.NewStructuralError(
			fmt.Sprintf("line %.1f outside plausibility range [%.1f, %.1f]", line, sport.LineMin, sport.LineMax),
			models.ErrLineImplausible,
		)
	}

	if snapshot.Scope != expectedScope {
		return nil, models.NewStructuralError(
			fmt.Sprintf("scope %s reused as %s", snapshot.Scope, expectedScope),
			models.ErrScopeMismatch,
		)
	}

	if snapshot.SourceID == "" {
		return nil, models.NewStructuralError("source attribution missing", models.ErrSourceMissing)
	}

	exists, err := v.resolver.Exists(ctx, snapshot.ContestID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contest %s: %w", snapshot.ContestID, err)
	}
	if !exists {
		return nil, models.NewStructuralError(
			fmt.Sprintf("contest %s not found", snapshot.ContestID),
			models.ErrContestNotFound,
		)
	}

	result := &models.VerificationResult{AgeHours: snapshot.AgeHours(now)}

	if result.AgeHours > sport.FreshnessHours {
		result.Stale = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("line is %.1fh old (freshness threshold %.0fh)", result.AgeHours, sport.FreshnessHours))
	}

	// No market, no publish: partial-period and derivative markets need a
	// bookmaker-sourced line before anything reaches end users. The
	// simulation may still run for internal use.
	if snapshot.Scope != models.ScopeFullContest && snapshot.SourceType != models.SourceBookmaker {
		result.PublishForbidden = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s market without bookmaker line, publication forbidden", snapshot.Scope))
	}

	v.logger.WithFields(logrus.Fields{
		"contest_id": snapshot.ContestID,
		"market_key": snapshot.MarketKey(),
		"line":       line,
		"stale":      result.Stale,
		"age_hours":  result.AgeHours,
	}).Debug("Market snapshot verified")

	return result, nil
}
