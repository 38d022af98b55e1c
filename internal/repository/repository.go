package repository

import (
	"fmt"

	"github.com/yourusername/pickwise/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Decision DecisionRepository
	Snapshot SnapshotRepository
	Baseline BaselineRepository
	Grading  GradingRepository
	Contest  ContestRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Decision: NewPostgresDecisionRepository(db),
		Snapshot: NewPostgresSnapshotRepository(db),
		Baseline: NewPostgresBaselineRepository(db),
		Grading:  NewPostgresGradingRepository(db),
		Contest:  NewPostgresContestRepository(db),
	}, nil
}
