// Package snapshot holds the read-mostly resources that outlive a single
// decision: the active calibration snapshot per sport and a TTL cache of
// historical baselines.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pickwise/internal/models"
)

// Store keeps exactly one active CalibrationSnapshot per sport. Snapshots
// are immutable; publication swaps the whole pointer, so readers always
// observe either the previous or the new snapshot, never a mix, and no
// in-flight decision ever blocks a swap (or vice versa).
type Store struct {
	mu     sync.Mutex // guards the sports map shape only, not reads
	sports map[string]*atomic.Pointer[models.CalibrationSnapshot]
	logger *logrus.Logger
}

// NewStore creates an empty snapshot store.
func NewStore(logger *logrus.Logger) *Store {
	return &Store{
		sports: make(map[string]*atomic.Pointer[models.CalibrationSnapshot]),
		logger: logger,
	}
}

// Active returns the pinned snapshot for a sport. Callers hold the same
// value for an entire decision.
func (s *Store) Active(sport string) (*models.CalibrationSnapshot, error) {
	s.mu.Lock()
	holder, ok := s.sports[sport]
	s.mu.Unlock()
	if !ok {
		return nil, models.ErrNoActiveSnapshot
	}

	snap := holder.Load()
	if snap == nil {
		return nil, models.ErrNoActiveSnapshot
	}
	return snap, nil
}

// Publish atomically replaces the active snapshot for a sport.
func (s *Store) Publish(snap *models.CalibrationSnapshot) {
	s.mu.Lock()
	holder, ok := s.sports[snap.Sport]
	if !ok {
		holder = &atomic.Pointer[models.CalibrationSnapshot]{}
		s.sports[snap.Sport] = holder
	}
	s.mu.Unlock()

	holder.Store(snap)

	s.logger.WithFields(logrus.Fields{
		"sport":       snap.Sport,
		"snapshot_id": snap.ID,
		"bootstrap":   snap.BootstrapMode,
		"computed_at": snap.ComputedAt,
	}).Info("Calibration snapshot swapped")
}

// FreshnessCheck returns a readiness probe that fails when any sport's
// active snapshot is older than maxAge. A sport whose holder was never
// published is reported too.
func (s *Store) FreshnessCheck(maxAge time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var stale []string
		for _, sport := range s.Sports() {
			snap, err := s.Active(sport)
			if err != nil {
				stale = append(stale, sport+": "+err.Error())
				continue
			}
			if age := time.Since(snap.ComputedAt); age > maxAge {
				stale = append(stale, fmt.Sprintf("%s: snapshot %.1fh old", sport, age.Hours()))
			}
		}
		if len(stale) > 0 {
			return fmt.Errorf("stale calibration snapshots: %s", strings.Join(stale, "; "))
		}
		return nil
	}
}

// Sports returns the sports with an active snapshot.
func (s *Store) Sports() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sports := make([]string, 0, len(s.sports))
	for sport, holder := range s.sports {
		if holder.Load() != nil {
			sports = append(sports, sport)
		}
	}
	return sports
}
