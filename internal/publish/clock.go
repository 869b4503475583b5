package publish

import (
	"context"
	"time"
)

// Clock abstracts time for the retry policy and poll loops so tests can run
// without real sleeps. Sleep must return early with the context's error when
// the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the production Clock backed by the runtime clock.
type SystemClock struct{}

// Now implements Clock.Now.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sleep implements Clock.Sleep.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
