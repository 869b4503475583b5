package publish

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/castpost/castpost-api/internal/platform/logger"
)

// RetryPolicy retries an operation on transient failures with exponential
// backoff and jitter. Permanent errors (auth, validation, configuration,
// unknown) bypass retry entirely.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry; each subsequent retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff delay. Zero means no cap.
	MaxDelay time.Duration

	clock Clock
}

// NewRetryPolicy creates a retry policy. Invalid values fall back to
// defaults (3 retries, 2s base delay).
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration, clock Clock) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 3
	}

	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	if clock == nil {
		clock = SystemClock{}
	}

	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		clock:      clock,
	}
}

// Do runs op, retrying on transient errors until the budget is exhausted.
// The returned error is the last error op produced.
func (p *RetryPolicy) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		attemptNum := attempt + 1

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("operation succeeded after retry",
					"operation", operation,
					"attempt", attemptNum)
			}
			return nil
		}

		lastErr = err

		if !IsTransient(err) {
			log.Warn("permanent error, not retrying",
				"operation", operation,
				"attempt", attemptNum,
				"error", err)
			return err
		}

		if attempt >= p.MaxRetries {
			log.Warn("maximum retry attempts reached",
				"operation", operation,
				"max_retries", p.MaxRetries)
			return fmt.Errorf("exceeded %d retry attempts for %s: %w",
				p.MaxRetries, operation, err)
		}

		delay := p.backoff(attempt)
		log.Info("retrying after delay",
			"operation", operation,
			"attempt", attemptNum,
			"delay", delay,
			"error", err)

		if sleepErr := p.clock.Sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("%s cancelled during retry delay: %w", operation, sleepErr)
		}
	}

	return lastErr
}

// backoff computes the delay before retry number attempt+1:
// base * 2^attempt, scaled by a jitter factor in [0.5, 1.0),
// capped at MaxDelay when set.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	// The top-level generator is safe for concurrent use; one policy is
	// shared across every adapter and worker.
	jitter := 0.5 + rand.Float64()*0.5
	delay := time.Duration(backoff * jitter)

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
