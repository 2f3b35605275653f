// Package ratelimit tracks per-provider usage in fixed one-minute windows.
// This intentionally mirrors how upstream search APIs meter keyless clients
// ("N requests per minute"), so it is a counting window, not a token bucket:
// budget does not trickle back between resets.
package ratelimit

import (
	"sync"
	"time"

	"omnisearch/searchservice/internal/domain"
)

const windowDuration = time.Minute

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func New() *Limiter {
	return &Limiter{windows: make(map[string]*window)}
}

// Allow reports whether the provider still has budget in the current window.
// It is a pure check apart from lazily discarding an expired window; it never
// consumes budget, so it is advisory only and TryReserve remains the
// authoritative gate at dispatch. A limit of zero or less means unlimited.
func (l *Limiter) Allow(id string, limit int, now time.Time) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[id]
	if w == nil {
		return true
	}
	if !now.Before(w.resetAt) {
		delete(l.windows, id)
		return true
	}
	return w.count < limit
}

// TryReserve consumes one unit of budget if the current window has room,
// checking and counting under a single lock so concurrent callers can never
// land past the limit together. Callers use it at the point of dispatch, once
// per attempt. A limit of zero or less means unlimited; usage is still
// counted so snapshots stay truthful.
func (l *Limiter) TryReserve(id string, limit int, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[id]
	if w == nil || !now.Before(w.resetAt) {
		l.windows[id] = &window{count: 1, resetAt: now.Add(windowDuration)}
		return true
	}
	if limit > 0 && w.count >= limit {
		return false
	}
	w.count++
	return true
}

// Record counts one dispatched call against the current window. Callers must
// only invoke it when a call is actually sent upstream, never speculatively.
func (l *Limiter) Record(id string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[id]
	if w == nil || !now.Before(w.resetAt) {
		l.windows[id] = &window{count: 1, resetAt: now.Add(windowDuration)}
		return
	}
	w.count++
}

// Used returns the usage counted in the current window.
func (l *Limiter) Used(id string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[id]
	if w == nil || !now.Before(w.resetAt) {
		return 0
	}
	return w.count
}

func (l *Limiter) Snapshot(id string, limit int, now time.Time) domain.RateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := domain.RateWindow{Limit: limit, ResetAt: now.Add(windowDuration)}
	if w := l.windows[id]; w != nil && now.Before(w.resetAt) {
		snap.Used = w.count
		snap.ResetAt = w.resetAt
	}
	if limit > 0 {
		if snap.Remaining = limit - snap.Used; snap.Remaining < 0 {
			snap.Remaining = 0
		}
	}
	return snap
}
