package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/events"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/castpost/castpost-api/internal/task"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	err   error
	calls []uuid.UUID
}

func (d *fakeDispatcher) PostNow(ctx context.Context, taskID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, taskID)
	return d.err
}

func TestDispatchEventHandler_HandleEvent(t *testing.T) {
	t.Parallel()

	t.Run("dispatches the event's task", func(t *testing.T) {
		t.Parallel()

		dispatcher := &fakeDispatcher{}
		handler := task.NewDispatchEventHandler(dispatcher, testLogger())

		taskID := uuid.New()
		err := handler.HandleEvent(context.Background(), events.NewDispatchRequestEvent(taskID, events.ReasonPostNow))

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{taskID}, dispatcher.calls)
	})

	t.Run("lost claim is not an error", func(t *testing.T) {
		t.Parallel()

		dispatcher := &fakeDispatcher{err: service.ErrAlreadyDispatched}
		handler := task.NewDispatchEventHandler(dispatcher, testLogger())

		err := handler.HandleEvent(context.Background(), events.NewDispatchRequestEvent(uuid.New(), events.ReasonDue))
		assert.NoError(t, err)
	})

	t.Run("unknown task surfaces as error", func(t *testing.T) {
		t.Parallel()

		dispatcher := &fakeDispatcher{err: store.ErrTaskNotFound}
		handler := task.NewDispatchEventHandler(dispatcher, testLogger())

		err := handler.HandleEvent(context.Background(), events.NewDispatchRequestEvent(uuid.New(), events.ReasonPostNow))
		assert.True(t, store.IsNotFoundError(err))
	})

	t.Run("dispatch failure propagates", func(t *testing.T) {
		t.Parallel()

		dispatcher := &fakeDispatcher{err: errors.New("queue full")}
		handler := task.NewDispatchEventHandler(dispatcher, testLogger())

		err := handler.HandleEvent(context.Background(), events.NewDispatchRequestEvent(uuid.New(), events.ReasonPostNow))
		assert.Error(t, err)
	})
}
