package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MissSeverity classifies how far the model's estimate landed from the
// actual outcome.
type MissSeverity string

// Miss severities
const (
	MissExact    MissSeverity = "EXACT"
	MissMinor    MissSeverity = "MINOR"
	MissModerate MissSeverity = "MODERATE"
	MissSevere   MissSeverity = "SEVERE"
)

// GradingRecord is the per-contest feedback record consumed by the offline
// job that produces the next CalibrationSnapshot.
type GradingRecord struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ContestID     uuid.UUID       `db:"contest_id" json:"contest_id" validate:"required"`
	Sport         string          `db:"sport" json:"sport" validate:"required"`
	ModelEstimate float64         `db:"model_estimate" json:"model_estimate"`
	MarketLine    decimal.Decimal `db:"market_line" json:"market_line"`
	ActualTotal   float64         `db:"actual_total" json:"actual_total"`
	ModelError    float64         `db:"model_error" json:"model_error"`
	MarketError   float64         `db:"market_error" json:"market_error"`
	Severity      MissSeverity    `db:"severity" json:"severity"`
	Weight        decimal.Decimal `db:"weight" json:"weight"`
	GradedAt      time.Time       `db:"graded_at" json:"graded_at"`
}

// ClassifyMiss maps an absolute estimate error in points to a severity
// using sport-tunable cut points.
func ClassifyMiss(absError, minorCut, moderateCut float64) MissSeverity {
	switch {
	case absError < 0.5:
		return MissExact
	case absError <= minorCut:
		return MissMinor
	case absError <= moderateCut:
		return MissModerate
	default:
		return MissSevere
	}
}

// SeverityWeight maps a miss severity to its calibration weight in
// [0.25, 1.5]. Bigger misses carry less weight so a single blowout cannot
// swing the next snapshot's bias estimate.
func SeverityWeight(s MissSeverity) decimal.Decimal {
	switch s {
	case MissExact:
		return decimal.NewFromFloat(1.5)
	case MissMinor:
		return decimal.NewFromFloat(1.0)
	case MissModerate:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.NewFromFloat(0.25)
	}
}

// NewGradingRecord grades one finished contest against the model estimate
// and the market line it was priced against.
func NewGradingRecord(contestID uuid.UUID, sport string, estimate float64, line decimal.Decimal, actual float64, minorCut, moderateCut float64, now time.Time) *GradingRecord {
	modelErr := estimate - actual
	marketErr := line.InexactFloat64() - actual
	severity := ClassifyMiss(math.Abs(modelErr), minorCut, moderateCut)

	return &GradingRecord{
		ID:            uuid.New(),
		ContestID:     contestID,
		Sport:         sport,
		ModelEstimate: estimate,
		MarketLine:    line,
		ActualTotal:   actual,
		ModelError:    modelErr,
		MarketError:   marketErr,
		Severity:      severity,
		Weight:        SeverityWeight(severity),
		GradedAt:      now,
	}
}
