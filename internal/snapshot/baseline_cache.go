package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/pickwise/internal/models"
)

// BaselineProvider loads historical baselines from durable storage.
type BaselineProvider interface {
	Baseline(ctx context.Context, sport string) (*models.HistoricalBaseline, error)
}

// BaselineCache fronts a BaselineProvider with an in-memory TTL cache.
// Baselines change at most daily, so a short TTL is plenty to keep the
// decision path off the database.
type BaselineCache struct {
	provider BaselineProvider
	cache    *cache.Cache
	ttl      time.Duration

	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewBaselineCache wraps a provider with the given TTL.
func NewBaselineCache(provider BaselineProvider, ttl time.Duration) *BaselineCache {
	return &BaselineCache{
		provider: provider,
		cache:    cache.New(ttl, ttl*2),
		ttl:      ttl,
	}
}

// Baseline returns the baseline for a sport, hitting storage only on a
// cache miss.
func (bc *BaselineCache) Baseline(ctx context.Context, sport string) (*models.HistoricalBaseline, error) {
	if cached, found := bc.cache.Get(sport); found {
		bc.mu.Lock()
		bc.hitCount++
		bc.mu.Unlock()
		if baseline, ok := cached.(*models.HistoricalBaseline); ok {
			return baseline, nil
		}
	}

	bc.mu.Lock()
	bc.missCount++
	bc.mu.Unlock()

	baseline, err := bc.provider.Baseline(ctx, sport)
	if err != nil {
		return nil, fmt.Errorf("loading baseline for %s: %w", sport, err)
	}

	bc.cache.Set(sport, baseline, bc.ttl)
	return baseline, nil
}

// Invalidate drops the cached baseline for a sport, forcing the next
// read through to storage. Called after a baseline refresh.
func (bc *BaselineCache) Invalidate(sport string) {
	bc.cache.Delete(sport)
}

// Stats returns hit/miss counters and the hit ratio.
func (bc *BaselineCache) Stats() (hits, misses uint64, ratio float64) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	hits = bc.hitCount
	misses = bc.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}
