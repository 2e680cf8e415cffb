// Package resilience retries CRM API calls that fail for transient reasons.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Retrier retries a call with exponential backoff and jitter. The zero value
// makes a single attempt.
type Retrier struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// NewRetrier builds a Retrier with the given attempt budget and the default
// backoff curve (250ms doubling up to 10s, 20% jitter).
func NewRetrier(maxAttempts int) *Retrier {
	return &Retrier{
		MaxAttempts:    maxAttempts,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.2,
	}
}

// Do runs fn until it succeeds, returns an error retryable rejects, the
// attempt budget is spent or ctx is done. The last error is returned.
func (r *Retrier) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, r, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, r *Retrier, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := 1
	if r != nil && r.MaxAttempts > 1 {
		attempts = r.MaxAttempts
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}

		timer := time.NewTimer(r.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// backoff returns the delay after the given (1-based) failed attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := float64(r.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if r.MaxBackoff > 0 && delay > float64(r.MaxBackoff) {
		delay = float64(r.MaxBackoff)
	}
	if r.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * r.Jitter
	}
	return time.Duration(max(delay, 0))
}

// LogRetries returns an OnRetry callback that logs each retry of operation.
func LogRetries(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
