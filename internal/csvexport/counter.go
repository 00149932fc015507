// Package csvexport implements the streaming CSV export pipeline behind
// POST /record/filter-stream: a bounded pool of partition producers feeding
// a bounded pool of transform workers, multiplexed onto the HTTP response
// body in deterministic partition order.
package csvexport

import (
	"context"
	"sync"
	"time"

	"github.com/recordkeeper/api/internal/cache"
	apierrors "github.com/recordkeeper/api/internal/errors"
)

// StreamCounter enforces DB_MAX_STREAMS_PER_USER. When a Cache is
// configured it counts across every API instance via an atomic INCR;
// otherwise it falls back to an in-process counter, which only bounds
// concurrency within this one instance.
type StreamCounter struct {
	cache *cache.Cache
	max   int

	mu    sync.Mutex
	local map[string]int
}

// NewStreamCounter builds a counter bounding each user to max concurrent
// streams. cache may be nil or disabled, in which case the in-process
// fallback is used.
func NewStreamCounter(c *cache.Cache, max int) *StreamCounter {
	return &StreamCounter{cache: c, max: max, local: make(map[string]int)}
}

// Acquire reserves one stream slot for userID, returning a release func to
// call when the stream ends (including on client disconnect) and a
// TOO_MANY_REQUESTS error if the user is already at the cap.
func (sc *StreamCounter) Acquire(ctx context.Context, userID string) (func(), *apierrors.AppError) {
	if sc.cache != nil && sc.cache.IsEnabled() {
		return sc.acquireDistributed(ctx, userID)
	}
	return sc.acquireLocal(userID)
}

func (sc *StreamCounter) acquireDistributed(ctx context.Context, userID string) (func(), *apierrors.AppError) {
	key := cache.StreamCounterKey(userID)
	count, err := sc.cache.Increment(ctx, key)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}
	// Bound the counter's lifetime so a crashed stream doesn't permanently
	// occupy a slot.
	_ = sc.cache.Expire(ctx, key, time.Hour)

	if count > int64(sc.max) {
		_, _ = sc.cache.IncrementBy(ctx, key, -1)
		return nil, apierrors.TooManyRequests("too many concurrent streams for this user")
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = sc.cache.IncrementBy(context.Background(), key, -1)
		})
	}
	return release, nil
}

func (sc *StreamCounter) acquireLocal(userID string) (func(), *apierrors.AppError) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.local[userID] >= sc.max {
		return nil, apierrors.TooManyRequests("too many concurrent streams for this user")
	}
	sc.local[userID]++

	var once sync.Once
	release := func() {
		once.Do(func() {
			sc.mu.Lock()
			defer sc.mu.Unlock()
			sc.local[userID]--
			if sc.local[userID] <= 0 {
				delete(sc.local, userID)
			}
		})
	}
	return release, nil
}
