package embedding

import (
	"context"
	"math"
	"time"
)

// RetryPolicy encapsulates the bounded exponential-backoff behaviour of the
// embedding service so backoff timing can be faked in tests.
type RetryPolicy struct {
	MaxRetries int
	// Backoff returns how long to wait before retry number attempt (1-based).
	// Defaults to 2^attempt seconds.
	Backoff func(attempt int) time.Duration
	// Sleep waits for the given duration or until ctx is done. Defaults to
	// a timer-based wait; tests replace it to avoid real sleeps.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the production policy: maxRetries attempts with
// 2^attempt seconds between them.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return RetryPolicy{
		MaxRetries: maxRetries,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
		Sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn up to MaxRetries times, waiting Backoff(attempt) between
// attempts. The wait is cancellable through ctx. Returns the last error when
// every attempt fails.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultRetryPolicy(p.MaxRetries).Backoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return lastErr
}
