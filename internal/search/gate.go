package search

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"omnisearch/searchservice/internal/metrics"
)

// permitGate bounds concurrent provider calls across every in-flight search
// round with a weighted semaphore. Waiters are served in FIFO order, so a
// burst of rounds cannot starve an earlier one.
type permitGate struct {
	sem      *semaphore.Weighted
	capacity int64

	mu       sync.Mutex
	inflight int64
	peak     int64
}

func newPermitGate(capacity int) *permitGate {
	if capacity <= 0 {
		capacity = defaultMaxConcurrent
	}
	return &permitGate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// acquire blocks until a permit is free or ctx is done. The caller must
// release exactly once after a nil return.
func (g *permitGate) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.mu.Lock()
	g.inflight++
	if g.inflight > g.peak {
		g.peak = g.inflight
	}
	g.mu.Unlock()
	metrics.FanoutInFlight.Inc()
	return nil
}

func (g *permitGate) release() {
	g.mu.Lock()
	g.inflight--
	g.mu.Unlock()
	metrics.FanoutInFlight.Dec()
	g.sem.Release(1)
}

// current returns how many permits are held right now.
func (g *permitGate) current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight
}

// highWater returns the maximum number of permits ever held at once. Tests
// use it to prove the concurrency bound.
func (g *permitGate) highWater() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
