package models

import (
	"time"

	"github.com/google/uuid"
)

// Contest holds the metadata this core needs about a scheduled game. Rate
// parameters and roster detail live with the upstream ingestion service;
// only identity and scheduling matter here.
type Contest struct {
	ID             uuid.UUID `db:"id" json:"id" validate:"required"`
	Sport          string    `db:"sport" json:"sport" validate:"required"`
	HomeTeam       string    `db:"home_team" json:"home_team" validate:"required"`
	AwayTeam       string    `db:"away_team" json:"away_team" validate:"required"`
	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start" validate:"required"`
	ActualTotal    *float64  `db:"actual_total" json:"actual_total,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Finished reports whether the final total is known.
func (c *Contest) Finished() bool {
	return c.ActualTotal != nil
}
