package search

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryConfig controls how provider calls are retried on transient failures.
// The executor re-checks the provider's rate budget before every extra
// attempt, so retries never push a provider past its per-minute limit.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default policy: 3 attempts, 300ms→600ms
// between them. Kept short because every retry burns round-deadline time.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}
}

// backoffDelay returns the jittered pause after the given 1-based attempt.
// Delays grow by Multiplier per attempt, carry ±25% jitter to avoid
// thundering-herd retries against a recovering upstream, and never exceed
// MaxDelay.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	jittered := applyJitter(delay)
	if cfg.MaxDelay > 0 && jittered > cfg.MaxDelay {
		jittered = cfg.MaxDelay
	}
	return jittered
}

// applyJitter randomizes a duration into [0.75d, 1.25d).
func applyJitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// sleepContext pauses for d or until ctx is done, reporting whether the full
// pause elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// httpStatusError is implemented by provider errors that carry an upstream
// HTTP status, letting the retry policy classify them without importing the
// provider packages.
type httpStatusError interface {
	HTTPStatusCode() int
}

// isTransientError reports whether a provider error may succeed on retry:
// timeouts, connection-level failures, 429s and upstream 5xx responses.
// Anything else (bad request, auth failure, parse error) fails immediately.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		code := statusErr.HTTPStatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "tls") ||
		strings.Contains(lower, "eof")
}

// isTimeoutLikeError separates deadline failures from other upstream errors
// for health accounting and status reporting.
func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
