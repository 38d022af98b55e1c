package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PickState is the terminal classification of a decision.
type PickState string

// Pick states. PICK is parlay-eligible; LEAN publishes standalone only;
// NO_PLAY is an analytical rejection and final for the contest;
// PENDING_INPUTS is internal-only and retried on the next scheduling pass.
const (
	StatePick          PickState = "PICK"
	StateLean          PickState = "LEAN"
	StateNoPlay        PickState = "NO_PLAY"
	StatePendingInputs PickState = "PENDING_INPUTS"
)

// Valid reports whether the state is one of the four defined states.
func (s PickState) Valid() bool {
	switch s {
	case StatePick, StateLean, StateNoPlay, StatePendingInputs:
		return true
	}
	return false
}

// Publishable reports whether the state may be surfaced to end users.
func (s PickState) Publishable() bool {
	return s == StatePick || s == StateLean
}

// ParlayEligible reports whether the state may be combined with other picks.
func (s PickState) ParlayEligible() bool {
	return s == StatePick
}

// Block reason codes recorded on DecisionRecord.BlockReasons.
const (
	ReasonMarketLineMissing      = "MARKET_LINE_MISSING"
	ReasonConfidenceNotComputed  = "CONFIDENCE_NOT_COMPUTED"
	ReasonVarianceNotComputed    = "VARIANCE_NOT_COMPUTED"
	ReasonProbabilityNotComputed = "PROBABILITY_NOT_COMPUTED"
	ReasonNoMarketNoPublish      = "NO_MARKET_NO_PUBLISH"
	ReasonDataIntegrityBlock     = "DATA_INTEGRITY_BLOCK"
	ReasonVarianceBlock          = "VARIANCE_BLOCK"
	ReasonClampFailed            = "REALITY_CHECK_FAILED"
	ReasonBelowLeanGates         = "BELOW_LEAN_THRESHOLDS"
	ReasonBootstrapDowngrade     = "BOOTSTRAP_DOWNGRADE"
)

// VersionStamp pins a decision to the exact model and configuration that
// produced it, plus every dampening rule that fired along the way.
type VersionStamp struct {
	ModelHash  string    `db:"model_hash" json:"model_hash"`
	ConfigHash string    `db:"config_hash" json:"config_hash"`
	Triggers   []string  `db:"triggers" json:"triggers"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}

// DecisionRecord is the terminal, immutable output of one pipeline run.
// Records are appended to the audit ledger and never mutated or deleted;
// a correction is a new record whose SupersedesID references the original.
type DecisionRecord struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	ContestID             uuid.UUID       `db:"contest_id" json:"contest_id" validate:"required"`
	MarketKey             string          `db:"market_key" json:"market_key" validate:"required"`
	Sport                 string          `db:"sport" json:"sport" validate:"required"`
	MarketLine            decimal.Decimal `db:"market_line" json:"market_line"`
	RawEstimate           float64         `db:"raw_estimate" json:"raw_estimate"`
	ClampedEstimate       float64         `db:"clamped_estimate" json:"clamped_estimate"`
	CalibratedProbability float64         `db:"calibrated_probability" json:"calibrated_probability" validate:"gte=0,lte=1"`
	CalibratedEdge        float64         `db:"calibrated_edge" json:"calibrated_edge"`
	ConfidenceScore       float64         `db:"confidence_score" json:"confidence_score" validate:"gte=0,lte=100"`
	VarianceZ             float64         `db:"variance_z" json:"variance_z"`
	PickState             PickState       `db:"pick_state" json:"pick_state" validate:"required"`
	BlockReasons          []string        `db:"block_reasons" json:"block_reasons"`
	Stamp                 VersionStamp    `db:"stamp" json:"version_stamp"`
	SupersedesID          *uuid.UUID      `db:"supersedes_id" json:"supersedes_id,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}

// Blocked reports whether any block reasons were recorded.
func (r *DecisionRecord) Blocked() bool {
	return len(r.BlockReasons) > 0
}
