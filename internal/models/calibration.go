package models

import (
	"time"

	"github.com/google/uuid"
)

// CalibrationSnapshot is the versioned, per-sport output of the offline
// feedback job. Exactly one snapshot is active per sport at any time; the
// feedback job replaces it atomically and no snapshot is ever edited in
// place. BootstrapMode is true when no prior-day feedback existed, putting
// every calibration layer into its degraded (cap/downgrade, never
// hard-block) behavior.
type CalibrationSnapshot struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Sport         string    `db:"sport" json:"sport" validate:"required"`
	BiasVsActual  float64   `db:"bias_vs_actual" json:"bias_vs_actual"`
	BiasVsMarket  float64   `db:"bias_vs_market" json:"bias_vs_market"`
	DampFactor    float64   `db:"damp_factor" json:"damp_factor" validate:"required,gt=0,lte=1"`
	BootstrapMode bool      `db:"bootstrap_mode" json:"bootstrap_mode"`
	SampleSize    int       `db:"sample_size" json:"sample_size" validate:"gte=0"`
	ComputedAt    time.Time `db:"computed_at" json:"computed_at" validate:"required"`
}

// NewBootstrapSnapshot returns the degraded-mode snapshot used when a sport
// has no feedback history yet.
func NewBootstrapSnapshot(sport string, now time.Time) *CalibrationSnapshot {
	return &CalibrationSnapshot{
		ID:            uuid.New(),
		Sport:         sport,
		DampFactor:    1.0,
		BootstrapMode: true,
		ComputedAt:    now,
	}
}

// AgeHours returns the snapshot age relative to now.
func (c *CalibrationSnapshot) AgeHours(now time.Time) float64 {
	return now.Sub(c.ComputedAt).Hours()
}

// AppliedPenalty records a single calibration layer firing, for the audit
// trail.
type AppliedPenalty struct {
	Layer  string `json:"layer"`
	Reason string `json:"reason"`
}

// CalibrationResult carries the calibrated tuple out of the five-layer
// engine together with everything the classifier and recorder need.
type CalibrationResult struct {
	Probability      float64          `json:"probability"`
	Edge             float64          `json:"edge"`
	Confidence       float64          `json:"confidence"`
	PublishAllowed   bool             `json:"publish_allowed"`
	ForceDowngrade   bool             `json:"force_downgrade"`
	AppliedPenalties []AppliedPenalty `json:"applied_penalties"`
	BlockReasons     []string         `json:"block_reasons"`
}

// TriggeredLayers returns the layer names that fired, in order.
func (r *CalibrationResult) TriggeredLayers() []string {
	names := make([]string, 0, len(r.AppliedPenalties))
	for _, p := range r.AppliedPenalties {
		names = append(names, p.Layer)
	}
	return names
}
