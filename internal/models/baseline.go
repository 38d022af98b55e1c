package models

import "time"

// HistoricalBaseline holds per-sport rolling totals statistics. Baselines
// are written by an external batch process on a daily cadence and are
// read-only to the pipeline.
type HistoricalBaseline struct {
	Sport                   string    `db:"sport" json:"sport" validate:"required"`
	MeanTotal               float64   `db:"mean_total" json:"mean_total" validate:"required,gt=0"`
	StdTotal                float64   `db:"std_total" json:"std_total" validate:"required,gt=0"`
	MeanPace                float64   `db:"mean_pace" json:"mean_pace" validate:"gte=0"`
	MeanPointsPerPossession float64   `db:"mean_points_per_possession" json:"mean_points_per_possession" validate:"gte=0"`
	SampleSize              int       `db:"sample_size" json:"sample_size" validate:"required,gt=0"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// ZScore returns how many standard deviations total sits from the rolling
// mean. A degenerate baseline (zero spread) yields 0 rather than Inf.
func (b *HistoricalBaseline) ZScore(total float64) float64 {
	if b.StdTotal <= 0 {
		return 0
	}
	return (total - b.MeanTotal) / b.StdTotal
}

// Bound returns the total at the given z boundary.
func (b *HistoricalBaseline) Bound(z float64) float64 {
	return b.MeanTotal + z*b.StdTotal
}
