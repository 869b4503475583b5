package publish_test

import (
	"context"
	"testing"
	"time"

	"github.com/castpost/castpost-api/internal/mocks"
	"github.com/castpost/castpost-api/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOps plays back a sequence of container statuses and counts calls.
type scriptedOps struct {
	createErr   error
	statuses    []publish.ContainerStatus
	statusCalls int
	publishErrs []error
	publishCall int
	postID      string
}

func (o *scriptedOps) Create(ctx context.Context) (string, error) {
	if o.createErr != nil {
		return "", o.createErr
	}
	return "container-1", nil
}

func (o *scriptedOps) Status(ctx context.Context, containerID string) (publish.ContainerStatus, error) {
	idx := o.statusCalls
	o.statusCalls++
	if idx >= len(o.statuses) {
		return o.statuses[len(o.statuses)-1], nil
	}
	return o.statuses[idx], nil
}

func (o *scriptedOps) Publish(ctx context.Context, containerID string) (string, error) {
	idx := o.publishCall
	o.publishCall++
	if idx < len(o.publishErrs) && o.publishErrs[idx] != nil {
		return "", o.publishErrs[idx]
	}
	if o.postID == "" {
		return "post-1", nil
	}
	return o.postID, nil
}

func testProcessor(clock publish.Clock) *publish.Processor {
	return publish.NewProcessor(publish.ProcessorConfig{
		PollInitial:       5 * time.Second,
		PollMax:           60 * time.Second,
		PollBudget:        600 * time.Second,
		PublishRetries:    2,
		PublishRetryDelay: time.Second,
	}, clock)
}

func TestProcessor_Run(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ready after a few polls publishes", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses: []publish.ContainerStatus{publish.ContainerInProgress, publish.ContainerInProgress, publish.ContainerReady},
		}

		postID, err := testProcessor(clock).Run(context.Background(), ops)
		require.NoError(t, err)
		assert.Equal(t, "post-1", postID)
		assert.Equal(t, 3, ops.statusCalls)
		assert.Equal(t, 1, ops.publishCall)
	})

	t.Run("interval doubles up to cap", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses: []publish.ContainerStatus{
				publish.ContainerInProgress, publish.ContainerInProgress, publish.ContainerInProgress,
				publish.ContainerInProgress, publish.ContainerInProgress, publish.ContainerReady,
			},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.NoError(t, err)

		want := []time.Duration{
			5 * time.Second, 10 * time.Second, 20 * time.Second,
			40 * time.Second, 60 * time.Second,
		}
		assert.Equal(t, want, clock.Sleeps())
	})

	t.Run("error status fails without publishing", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses: []publish.ContainerStatus{publish.ContainerInProgress, publish.ContainerError},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.Error(t, err)
		assert.Equal(t, publish.KindValidation, publish.KindOf(err))
		assert.Zero(t, ops.publishCall, "failed container must never be published")
	})

	t.Run("expired status fails without publishing", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses: []publish.ContainerStatus{publish.ContainerExpired},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.Error(t, err)
		assert.Zero(t, ops.publishCall)
	})

	t.Run("never-ready container times out within budget", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses: []publish.ContainerStatus{publish.ContainerInProgress},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
		assert.Zero(t, ops.publishCall)

		// All recorded sleeps fit inside the wall-clock budget.
		elapsed := clock.Now().Sub(start)
		assert.LessOrEqual(t, elapsed, 600*time.Second)
	})

	t.Run("not-ready publish retried on its own budget", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		notReady := publish.NewError(publish.KindTransient, "media_not_ready", "not ready", publish.ErrMediaNotReady)
		ops := &scriptedOps{
			statuses:    []publish.ContainerStatus{publish.ContainerReady},
			publishErrs: []error{notReady, notReady, nil},
		}

		postID, err := testProcessor(clock).Run(context.Background(), ops)
		require.NoError(t, err)
		assert.Equal(t, "post-1", postID)
		assert.Equal(t, 3, ops.publishCall)
	})

	t.Run("not-ready publish gives up after budget", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		notReady := publish.NewError(publish.KindTransient, "media_not_ready", "not ready", publish.ErrMediaNotReady)
		ops := &scriptedOps{
			statuses:    []publish.ContainerStatus{publish.ContainerReady},
			publishErrs: []error{notReady, notReady, notReady, notReady},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "still not ready")
		assert.Equal(t, 3, ops.publishCall) // first attempt + 2 retries
	})

	t.Run("non-not-ready publish error fails immediately", func(t *testing.T) {
		t.Parallel()

		clock := mocks.NewFakeClock(start)
		ops := &scriptedOps{
			statuses:    []publish.ContainerStatus{publish.ContainerReady},
			publishErrs: []error{publish.NewError(publish.KindAuth, "190", "bad token", nil)},
		}

		_, err := testProcessor(clock).Run(context.Background(), ops)
		require.Error(t, err)
		assert.Equal(t, publish.KindAuth, publish.KindOf(err))
		assert.Equal(t, 1, ops.publishCall)
	})
}
