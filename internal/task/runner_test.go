package task_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/mocks"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/store"
	"github.com/castpost/castpost-api/internal/task"
)

// scriptedExecutor returns the scripted errors in order, then succeeds. It
// signals on done each time the terminal outcome (success or a permanent
// error) is reached.
type scriptedExecutor struct {
	mu    sync.Mutex
	errs  []error
	calls int
	done  chan struct{}
}

func newScriptedExecutor(errs ...error) *scriptedExecutor {
	return &scriptedExecutor{errs: errs, done: make(chan struct{}, 16)}
}

func (e *scriptedExecutor) Run(ctx context.Context, exec *service.Execution) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		if !store.IsTransientError(err) {
			e.done <- struct{}{}
		}
		return err
	}

	e.done <- struct{}{}
	return nil
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *scriptedExecutor) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for execution to settle")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transientErr() error {
	return fmt.Errorf("%w: connection pool exhausted", store.ErrTransient)
}

func TestRunner_ProcessesSubmittedExecution(t *testing.T) {
	t.Parallel()

	executor := newScriptedExecutor()
	runner := task.NewRunner(executor, task.DefaultRunnerConfig(), mocks.NewFakeClock(time.Now()), testLogger())
	runner.Start()
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), service.NewExecution(uuid.New())))

	executor.waitDone(t)
	assert.Equal(t, 1, executor.callCount())
}

func TestRunner_RetriesTransientFailuresWithBackoff(t *testing.T) {
	t.Parallel()

	executor := newScriptedExecutor(transientErr(), transientErr())
	clock := mocks.NewFakeClock(time.Now())
	config := task.RunnerConfig{WorkerCount: 1, QueueSize: 10, MaxRetries: 3, RetryBaseDelay: 5 * time.Second}

	runner := task.NewRunner(executor, config, clock, testLogger())
	runner.Start()
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), service.NewExecution(uuid.New())))

	executor.waitDone(t)
	assert.Equal(t, 3, executor.callCount(), "two transient failures plus the success")
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, clock.Sleeps())
}

func TestRunner_PermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	executor := newScriptedExecutor(errors.New("selection gone"))
	clock := mocks.NewFakeClock(time.Now())

	runner := task.NewRunner(executor, task.DefaultRunnerConfig(), clock, testLogger())

	var handled []error
	var mu sync.Mutex
	runner.SetErrorHandler(func(exec *service.Execution, err error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, err)
	})

	runner.Start()
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), service.NewExecution(uuid.New())))

	executor.waitDone(t)
	assert.Equal(t, 1, executor.callCount())
	assert.Empty(t, clock.Sleeps())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 1)
}

func TestRunner_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	// More transient failures than the budget allows.
	executor := newScriptedExecutor(transientErr(), transientErr(), transientErr())
	clock := mocks.NewFakeClock(time.Now())
	config := task.RunnerConfig{WorkerCount: 1, QueueSize: 10, MaxRetries: 2, RetryBaseDelay: time.Second}

	runner := task.NewRunner(executor, config, clock, testLogger())

	handled := make(chan error, 1)
	runner.SetErrorHandler(func(exec *service.Execution, err error) {
		handled <- err
	})

	runner.Start()
	defer runner.Stop()

	require.NoError(t, runner.Submit(context.Background(), service.NewExecution(uuid.New())))

	select {
	case err := <-handled:
		assert.True(t, store.IsTransientError(err))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error handler")
	}

	assert.Equal(t, 3, executor.callCount(), "initial attempt plus two retries")
}

func TestRunner_SubmitFailsWhenQueueFull(t *testing.T) {
	t.Parallel()

	executor := newScriptedExecutor()
	config := task.RunnerConfig{WorkerCount: 1, QueueSize: 1, MaxRetries: 0, RetryBaseDelay: time.Second}

	// Runner not started: nothing drains the queue.
	runner := task.NewRunner(executor, config, mocks.NewFakeClock(time.Now()), testLogger())

	require.NoError(t, runner.Submit(context.Background(), service.NewExecution(uuid.New())))
	err := runner.Submit(context.Background(), service.NewExecution(uuid.New()))
	assert.Error(t, err)
}
