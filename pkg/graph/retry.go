package graph

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// isTransient reports whether err is the kind of failure spec.md §4.6 calls
// out for backoff-and-retry: an LLM endpoint that is temporarily
// unreachable. Anything else (permission denial, context overflow, an
// unsupported operation) is a decision, not a hiccup, and retrying it would
// just waste the retry budget before surfacing the same outcome.
func isTransient(err error) bool {
	return apperr.KindOf(err) == apperr.KindUpstreamUnavailable
}

// withRetry runs fn up to cfg.MaxAttempts times total, stopping early on
// success or on an error shouldRetry rejects, sleeping a jittered
// exponential backoff between attempts (spec.md §4.6: "jittered
// exponential backoff, max 3 attempts, base 200ms, cap 4s"). This is the
// graph-level counterpart to pkg/httpx's per-request retry: it wraps a
// whole C4 call (possibly several HTTP requests once httpx's own retries
// are spent), not a single round trip.
func withRetry(ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) || attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}
	return lastErr
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.RetryBaseDelay
	jitter := time.Duration(rand.Float64() * float64(backoff) * 0.2)
	d := backoff + jitter
	if d > cfg.RetryMaxDelay {
		return cfg.RetryMaxDelay
	}
	return d
}
