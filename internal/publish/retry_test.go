package publish_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/castpost/castpost-api/internal/mocks"
	"github.com/castpost/castpost-api/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("succeeds first try without sleeping", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(3, time.Second, 0, clock)

		calls := 0
		err := policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, clock.Sleeps())
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(3, time.Second, 0, clock)

		calls := 0
		err := policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return publish.NewError(publish.KindTransient, "", "connection reset", nil)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Len(t, clock.Sleeps(), 2)
	})

	t.Run("permanent error bypasses retry", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(3, time.Second, 0, clock)

		calls := 0
		authErr := publish.NewError(publish.KindAuth, "190", "invalid token", nil)
		err := policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			calls++
			return authErr
		})

		assert.ErrorIs(t, err, authErr)
		assert.Equal(t, 1, calls)
		assert.Empty(t, clock.Sleeps())
	})

	t.Run("budget exhaustion returns last error", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(2, time.Second, 0, clock)

		calls := 0
		err := policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			calls++
			return publish.NewError(publish.KindTransient, "", "still down", nil)
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls) // first attempt + 2 retries
		assert.Contains(t, err.Error(), "exceeded 2 retry attempts")
	})

	t.Run("backoff grows exponentially within jitter bounds", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(3, time.Second, 0, clock)

		_ = policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			return publish.NewError(publish.KindTransient, "", "nope", nil)
		})

		sleeps := clock.Sleeps()
		require.Len(t, sleeps, 3)
		for i, sleep := range sleeps {
			base := time.Duration(1<<uint(i)) * time.Second
			assert.GreaterOrEqual(t, sleep, base/2, "sleep %d below jitter floor", i)
			assert.Less(t, sleep, base, "sleep %d above jitter ceiling", i)
		}
	})

	t.Run("max delay caps backoff", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(5, 10*time.Second, 15*time.Second, clock)

		_ = policy.Do(context.Background(), "publish", func(ctx context.Context) error {
			return publish.NewError(publish.KindTransient, "", "nope", nil)
		})

		for _, sleep := range clock.Sleeps() {
			assert.LessOrEqual(t, sleep, 15*time.Second)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		policy := publish.NewRetryPolicy(5, time.Second, 0, clock)

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := policy.Do(ctx, "publish", func(ctx context.Context) error {
			calls++
			cancel()
			return publish.NewError(publish.KindTransient, "", "nope", nil)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	t.Parallel()

	policy := publish.NewRetryPolicy(-1, 0, 0, nil)
	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, 2*time.Second, policy.BaseDelay)
}

func TestRetryPolicy_ConcurrentDo(t *testing.T) {
	t.Parallel()

	// A single policy is shared by every adapter, so Do must be safe to
	// call from the worker pool's goroutines at once.
	clock := mocks.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	policy := publish.NewRetryPolicy(2, time.Millisecond, 0, clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calls := 0
			err := policy.Do(context.Background(), "publish", func(ctx context.Context) error {
				calls++
				if calls < 2 {
					return publish.NewError(publish.KindTransient, "", "flaky", nil)
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
