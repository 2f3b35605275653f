// Package health tracks per-provider availability for the search fan-out.
// A provider turns unhealthy after a streak of consecutive failures and is
// skipped until its cooldown elapses, at which point a single probe call is
// admitted: probe success restores the provider, probe failure re-arms a
// longer cooldown.
package health

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/metrics"
)

const (
	DefaultFailoverThreshold = 3
	DefaultCooldownBase      = 2 * time.Minute
	DefaultCooldownMax       = 15 * time.Minute

	// Weight of the newest sample in the latency moving average.
	latencyEMAWeight = 0.1
)

type Monitor struct {
	mu           sync.Mutex
	threshold    int
	cooldownBase time.Duration
	cooldownMax  time.Duration
	entries      map[string]*entry
}

type entry struct {
	healthy             bool
	probing             bool
	consecutiveFailures int
	totalRequests       int64
	errorCount          int64
	avgLatencyMS        float64
	emaSeeded           bool
	lastError           string
	lastCheckedAt       time.Time
	retryAt             time.Time
}

// New builds a monitor. Non-positive arguments fall back to the defaults.
func New(threshold int, cooldownBase, cooldownMax time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = DefaultFailoverThreshold
	}
	if cooldownBase <= 0 {
		cooldownBase = DefaultCooldownBase
	}
	if cooldownMax <= 0 {
		cooldownMax = DefaultCooldownMax
	}
	return &Monitor{
		threshold:    threshold,
		cooldownBase: cooldownBase,
		cooldownMax:  cooldownMax,
		entries:      make(map[string]*entry),
	}
}

// IsHealthy is a pure read; providers the monitor has never seen are healthy.
func (m *Monitor) IsHealthy(id string) bool {
	id = normalizeID(id)
	if id == "" {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[id]
	return e == nil || e.healthy
}

// Allow decides whether a fan-out task may call the provider. Healthy
// providers always pass. An unhealthy provider passes once its cooldown has
// elapsed and no probe is already in flight; everyone else gets the retry
// time and the last error for skip reporting. Allow never mutates state, so
// callers with more gates to clear afterwards (rate budget, permits) cannot
// strand a probe slot by bailing out. A passing caller for an unhealthy
// provider must claim the slot with BeginProbe right before dispatching.
func (m *Monitor) Allow(id string, now time.Time) (bool, time.Time, string) {
	id = normalizeID(id)
	if id == "" {
		return true, time.Time{}, ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[id]
	if e == nil || e.healthy {
		return true, time.Time{}, ""
	}
	if !e.probing && !now.Before(e.retryAt) {
		return true, time.Time{}, ""
	}
	return false, e.retryAt, e.lastError
}

// BeginProbe claims the single recovery probe for an unhealthy provider.
// It returns false when the provider is healthy (no probe needed), still
// cooling down, or another probe is in flight. The claim is released by the
// next RecordResult for the provider.
func (m *Monitor) BeginProbe(id string, now time.Time) bool {
	id = normalizeID(id)
	if id == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[id]
	if e == nil || e.healthy {
		return false
	}
	if e.probing || now.Before(e.retryAt) {
		return false
	}
	e.probing = true
	return true
}

// RecordResult is the single mutation point: one call per settled task.
// Skipped tasks must not be recorded here.
func (m *Monitor) RecordResult(id string, err error, latency time.Duration, now time.Time) {
	id = normalizeID(id)
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[id]
	if e == nil {
		e = &entry{healthy: true}
		m.entries[id] = e
	}
	e.totalRequests++
	e.lastCheckedAt = now
	e.probing = false
	if latency > 0 {
		metrics.ProviderRequestDuration.WithLabelValues(id).Observe(latency.Seconds())
	}

	if err == nil {
		e.healthy = true
		e.consecutiveFailures = 0
		e.retryAt = time.Time{}
		e.lastError = ""
		if latency > 0 {
			sample := float64(latency.Milliseconds())
			if e.emaSeeded {
				e.avgLatencyMS = latencyEMAWeight*sample + (1-latencyEMAWeight)*e.avgLatencyMS
			} else {
				e.avgLatencyMS = sample
				e.emaSeeded = true
			}
		}
		metrics.ProviderRequestsTotal.WithLabelValues(id, "ok").Inc()
		metrics.ProviderHealthy.WithLabelValues(id).Set(1)
		return
	}

	e.consecutiveFailures++
	e.errorCount++
	e.lastError = err.Error()

	status := "error"
	if isTimeoutLikeError(err) {
		status = "timeout"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(id, status).Inc()

	if e.consecutiveFailures >= m.threshold {
		e.healthy = false
		e.retryAt = now.Add(m.cooldown(e.consecutiveFailures))
		metrics.ProviderHealthy.WithLabelValues(id).Set(0)
	}
}

// cooldown grows the block duration with the failure streak:
// base × 2^(failures - threshold), capped.
func (m *Monitor) cooldown(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - m.threshold
	if exponent < 0 {
		exponent = 0
	}
	d := m.cooldownBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > m.cooldownMax {
			return m.cooldownMax
		}
	}
	return d
}

func (m *Monitor) SnapshotFor(id string) domain.ProviderHealth {
	id = normalizeID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[id]
	if e == nil {
		return domain.ProviderHealth{ID: id, Healthy: true, SuccessRate: 1}
	}
	return snapshotEntry(id, e)
}

func (m *Monitor) Snapshot() []domain.ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]domain.ProviderHealth, 0, len(m.entries))
	for id, e := range m.entries {
		items = append(items, snapshotEntry(id, e))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func snapshotEntry(id string, e *entry) domain.ProviderHealth {
	item := domain.ProviderHealth{
		ID:                  id,
		Healthy:             e.healthy,
		ConsecutiveFailures: e.consecutiveFailures,
		TotalRequests:       e.totalRequests,
		ErrorCount:          e.errorCount,
		SuccessRate:         1,
		AvgLatencyMS:        e.avgLatencyMS,
		LastError:           e.lastError,
		Probing:             e.probing,
	}
	if e.totalRequests > 0 {
		item.SuccessRate = 1 - float64(e.errorCount)/float64(e.totalRequests)
	}
	if !e.lastCheckedAt.IsZero() {
		checked := e.lastCheckedAt
		item.LastCheckedAt = &checked
	}
	if !e.retryAt.IsZero() {
		retry := e.retryAt
		item.RetryAt = &retry
	}
	return item
}

func normalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}
