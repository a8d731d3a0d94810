package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls how a call is retried. The zero value never retries;
// DefaultRetryConfig gives the retry-once policy the data fetchers use.
type RetryConfig struct {
	// MaxAttempts counts every try, including the first. 2 means one retry.
	MaxAttempts int

	// Backoff is the pause before the first retry; each further retry
	// doubles it.
	Backoff time.Duration

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig retries transient failures exactly once after a short
// jittered pause.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		Backoff:     500 * time.Millisecond,
	}
}

// Do runs fn, retrying per cfg while the error stays transient and the
// context stays live.
func Do(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that produce a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	pause := cfg.Backoff

	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt >= attempts || ctx.Err() != nil || !retryable(err) {
			return zero, lastErr
		}

		if !sleep(ctx, jittered(pause)) {
			return zero, lastErr
		}
		pause *= 2
	}
}

// jittered spreads a delay over [d/2, 3d/2) so synchronized clients do not
// retry in lockstep.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d)))
}

// sleep waits for d or until the context ends, reporting whether the full
// wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
