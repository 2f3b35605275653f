package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"omnisearch/searchservice/internal/domain"
	"omnisearch/searchservice/internal/metrics"
)

// task is one provider call inside a fan-out round.
type task struct {
	desc   domain.ProviderDescriptor
	client Client
	query  string
	params domain.QueryParams
}

// executeFanOut runs every task in its own goroutine and returns the settled
// results in selection order. onResult, when non-nil, fires once per settled
// task from the task's goroutine; callers that aggregate incrementally must
// synchronize inside the callback.
func (s *Service) executeFanOut(ctx context.Context, tasks []task, onResult func(index int, result domain.ProviderResult)) []domain.ProviderResult {
	results := make([]domain.ProviderResult, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			result := s.runTask(ctx, tasks[index])
			results[index] = result
			if onResult != nil {
				onResult(index, result)
			}
		}(i)
	}
	wg.Wait()

	return results
}

// runTask walks one provider call through the gates: health, rate budget,
// concurrency permit, then the timed call itself. Skips consume no permit and
// leave health untouched. Every dispatched call records exactly one health
// outcome, success or not.
func (s *Service) runTask(ctx context.Context, t task) domain.ProviderResult {
	id := t.desc.ID

	now := time.Now()
	if ok, retryAt, lastErr := s.monitor.Allow(id, now); !ok {
		return s.skipUnhealthy(id, retryAt, lastErr)
	}
	if !s.limiter.Allow(id, t.desc.RateLimit, now) {
		return s.skipRateLimited(id, t.desc.RateLimit, now)
	}

	if err := s.gate.acquire(ctx); err != nil {
		// The round ended while this task was still queued. The provider was
		// never called, so its health record stays untouched.
		metrics.ProviderRequestsTotal.WithLabelValues(id, "cancelled").Inc()
		return domain.ProviderResult{
			ProviderID: id,
			Reason:     domain.ReasonTimeout,
			Err:        fmt.Errorf("cancelled before dispatch: %w", err),
		}
	}
	defer s.gate.release()

	// Consume budget after the queue wait: the window may have filled while
	// this task held no budget, and the atomic reserve keeps overlapping tasks
	// from landing past the limit together. Budget is reserved before the
	// probe claim so a lost probe race can never strand the slot.
	now = time.Now()
	if !s.limiter.TryReserve(id, t.desc.RateLimit, now) {
		return s.skipRateLimited(id, t.desc.RateLimit, now)
	}
	if !s.monitor.IsHealthy(id) && !s.monitor.BeginProbe(id, now) {
		_, retryAt, lastErr := s.monitor.Allow(id, now)
		return s.skipUnhealthy(id, retryAt, lastErr)
	}

	started := time.Now()
	payload, err := s.invokeWithRetry(ctx, t)
	latency := time.Since(started)
	s.monitor.RecordResult(id, err, latency, time.Now())

	if err != nil {
		reason := domain.ReasonUpstream
		if isTimeoutLikeError(err) {
			reason = domain.ReasonTimeout
		}
		s.logger.Warn("provider call failed",
			"provider", id,
			"reason", reason,
			"latency_ms", latency.Milliseconds(),
			"error", err)
		return domain.ProviderResult{
			ProviderID: id,
			Err:        err,
			Reason:     reason,
			Latency:    latency,
		}
	}

	items, recognized := normalizePayload(payload)
	if !recognized {
		// The call succeeded but the body fits no known shape. Count it as a
		// zero-result success so a schema change upstream never trips the
		// health monitor.
		s.logger.Warn("provider returned unrecognized payload shape", "provider", id)
		return domain.ProviderResult{
			ProviderID: id,
			Items:      []domain.ResultItem{},
			Reason:     domain.ReasonMalformed,
			Err:        fmt.Errorf("unrecognized response shape %T", payload),
			Latency:    latency,
		}
	}

	for i := range items {
		items[i].Source = id
		if items[i].Category == "" {
			items[i].Category = t.desc.Category
		}
	}
	return domain.ProviderResult{
		ProviderID: id,
		Items:      items,
		Latency:    latency,
	}
}

func (s *Service) skipUnhealthy(id string, retryAt time.Time, lastErr string) domain.ProviderResult {
	metrics.ProviderRequestsTotal.WithLabelValues(id, "unhealthy").Inc()
	msg := "provider is unhealthy"
	if !retryAt.IsZero() {
		msg = fmt.Sprintf("provider is unhealthy, next probe at %s", retryAt.UTC().Format(time.RFC3339))
	}
	if lastErr != "" {
		msg += ": " + lastErr
	}
	return domain.ProviderResult{
		ProviderID: id,
		Skipped:    true,
		Reason:     domain.ReasonUnhealthy,
		Err:        errors.New(msg),
	}
}

func (s *Service) skipRateLimited(id string, limit int, now time.Time) domain.ProviderResult {
	metrics.ProviderRequestsTotal.WithLabelValues(id, "rate_limited").Inc()
	window := s.limiter.Snapshot(id, limit, now)
	return domain.ProviderResult{
		ProviderID: id,
		Skipped:    true,
		Reason:     domain.ReasonRateLimited,
		Err: fmt.Errorf("rate limit reached (%d/%d), window resets at %s",
			window.Used, window.Limit, window.ResetAt.UTC().Format(time.RFC3339)),
	}
}

// invokeWithRetry calls the client under the per-task deadline, retrying
// transient failures with jittered backoff. The first attempt runs on the
// budget reserved at the gate; every later attempt must reserve its own, so
// retries never blow through the per-minute limit.
func (s *Service) invokeWithRetry(ctx context.Context, t task) (any, error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	maxAttempts := s.retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var payload any
	var err error
	for attempt := 1; ; attempt++ {
		payload, err = t.client.Execute(taskCtx, t.query, t.params)
		if err == nil || attempt >= maxAttempts || !isTransientError(err) || taskCtx.Err() != nil {
			return payload, err
		}
		if !sleepContext(taskCtx, backoffDelay(s.retryCfg, attempt)) {
			return payload, err
		}
		if !s.limiter.TryReserve(t.desc.ID, t.desc.RateLimit, time.Now()) {
			// Budget exhausted mid-retry; surface the last upstream error.
			return payload, err
		}
		s.logger.Debug("retrying provider call",
			"provider", t.desc.ID,
			"attempt", attempt+1,
			"error", err)
	}
}
