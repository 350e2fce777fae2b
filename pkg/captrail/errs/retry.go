package errs

import (
	"context"
	"time"
)

// RetryConfig bounds a retried operation: a fixed attempt count with a
// fixed delay between attempts, so total blocking time is always
// MaxAttempts-1 backoffs plus the attempts themselves.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
}

// DefaultRetry matches the log writer's contract: three attempts with a
// short fixed delay.
var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	Backoff:     10 * time.Millisecond,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{MaxAttempts: 1}

// RetryResult describes a completed retry operation.
type RetryResult struct {
	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent.
	Duration time.Duration
}

// FailedAttempts returns the number of attempts that failed.
func (r RetryResult) FailedAttempts() int {
	if r.Err != nil {
		return r.Attempts
	}
	return r.Attempts - 1
}

// WithRetry executes fn with a bounded number of attempts.
func WithRetry(cfg RetryConfig, fn func() error) RetryResult {
	return WithRetryContext(context.Background(), cfg, func(context.Context) error {
		return fn()
	})
}

// WithRetryContext executes fn with a bounded number of attempts,
// respecting context cancellation between attempts.
func WithRetryContext(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) RetryResult {
	start := time.Now()
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult{Err: err, Attempts: attempt, Duration: time.Since(start)}
		}

		err := fn(ctx)
		if err == nil {
			return RetryResult{Attempts: attempt + 1, Duration: time.Since(start)}
		}
		lastErr = err

		// Don't sleep after the last attempt.
		if attempt < attempts-1 && cfg.Backoff > 0 {
			select {
			case <-ctx.Done():
				return RetryResult{Err: ctx.Err(), Attempts: attempt + 1, Duration: time.Since(start)}
			case <-time.After(cfg.Backoff):
			}
		}
	}

	return RetryResult{
		Err:      WriteFailure(lastErr, "max retries exceeded"),
		Attempts: attempts,
		Duration: time.Since(start),
	}
}
