package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketScope identifies what portion of a contest a line prices.
type MarketScope string

// Market scopes
const (
	ScopeFullContest   MarketScope = "full_contest"
	ScopePartialPeriod MarketScope = "partial_period"
	ScopeDerivative    MarketScope = "derivative"
)

// MarketSourceType identifies where a line came from.
type MarketSourceType string

// Market source types
const (
	SourceBookmaker MarketSourceType = "bookmaker"
	SourceConsensus MarketSourceType = "consensus"
	SourceModel     MarketSourceType = "model"
)

// MarketSnapshot is the external pricing context at decision time. It is
// created per decision request and discarded once a DecisionRecord exists.
type MarketSnapshot struct {
	ContestID     uuid.UUID        `db:"contest_id" json:"contest_id" validate:"required"`
	Sport         string           `db:"sport" json:"sport" validate:"required"`
	LineValue     decimal.Decimal  `db:"line_value" json:"line_value"`
	LineTimestamp time.Time        `db:"line_timestamp" json:"line_timestamp" validate:"required"`
	SourceID      string           `db:"source_id" json:"source_id"`
	SourceType    MarketSourceType `db:"source_type" json:"source_type"`
	Scope         MarketScope      `db:"scope" json:"scope" validate:"required"`
}

// Line returns the line value as a float for pipeline arithmetic.
func (m *MarketSnapshot) Line() float64 {
	return m.LineValue.InexactFloat64()
}

// HasLine reports whether a usable line is present. A zero line is treated
// as missing; no real totals market prices at zero.
func (m *MarketSnapshot) HasLine() bool {
	return !m.LineValue.IsZero()
}

// AgeHours returns the line age in hours relative to now.
func (m *MarketSnapshot) AgeHours(now time.Time) float64 {
	return now.Sub(m.LineTimestamp).Hours()
}

// MarketKey returns the contest+market identity used for decision
// serialization and for correction records.
func (m *MarketSnapshot) MarketKey() string {
	return m.ContestID.String() + ":" + string(m.Scope)
}

// VerificationResult is the verifier's soft-condition output. Hard failures
// are returned as a StructuralError instead.
type VerificationResult struct {
	Stale            bool     `json:"stale"`
	AgeHours         float64  `json:"age_hours"`
	PublishForbidden bool     `json:"publish_forbidden"`
	Warnings         []string `json:"warnings"`
}
