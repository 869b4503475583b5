package task

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/castpost/castpost-api/internal/publish"
	"github.com/castpost/castpost-api/internal/service"
	"github.com/castpost/castpost-api/internal/store"
)

// RunnerConfig holds configuration for the execution runner.
type RunnerConfig struct {
	// WorkerCount determines how many task executions run concurrently.
	// Within one execution the platform loop stays sequential; concurrency
	// exists only across tasks.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory execution queue.
	QueueSize int

	// MaxRetries bounds job-layer requeues of one execution after transient
	// persistence failures.
	MaxRetries int

	// RetryBaseDelay is the delay before the first requeue; each subsequent
	// requeue doubles it.
	RetryBaseDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:    2,
		QueueSize:      100,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Second,
	}
}

// Executor runs one task execution to completion. Implemented by
// service.ExecutionOrchestrator.
type Executor interface {
	Run(ctx context.Context, exec *service.Execution) error
}

// Runner processes task executions on a bounded worker pool. It retries an
// execution only when the orchestrator reports a transient persistence
// failure; the Execution's cached outcomes make that retry safe.
//
// Runner implements service.Submitter.
type Runner struct {
	executor   Executor
	execChan   chan *service.Execution
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	clock      publish.Clock
	logger     *slog.Logger
	errHandler func(exec *service.Execution, err error)
}

// NewRunner creates a Runner. clock may be nil, in which case the system
// clock is used.
func NewRunner(executor Executor, config RunnerConfig, clock publish.Clock, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 5 * time.Second
	}
	if clock == nil {
		clock = publish.SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		executor:   executor,
		execChan:   make(chan *service.Execution, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		clock:      clock,
		logger:     logger,
		errHandler: func(exec *service.Execution, err error) {
			logger.Error("task execution failed",
				"task_id", exec.TaskID,
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom handler for executions that fail
// permanently or exhaust their retry budget.
func (r *Runner) SetErrorHandler(handler func(exec *service.Execution, err error)) {
	r.errHandler = handler
}

// Submit adds an execution to the queue. It never blocks: a full queue is an
// error the dispatcher surfaces to its caller.
func (r *Runner) Submit(ctx context.Context, exec *service.Execution) error {
	select {
	case r.execChan <- exec:
		return nil
	default:
		return fmt.Errorf("execution queue is full, try again later")
	}
}

// Start initializes the worker pool and begins processing executions.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop gracefully shuts down the runner. In-flight executions finish their
// current pass; queued executions are dropped (their tasks stay queued for
// operator re-dispatch).
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	close(r.execChan)
}

// worker processes executions from the queue.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case exec, ok := <-r.execChan:
			if !ok {
				r.logger.Debug("execution channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processExecution(exec, id)
		}
	}
}

// processExecution runs one execution, retrying transient failures inline
// with exponential backoff. Only errors wrapping store.ErrTransient are
// retried; the Execution carries its publish outcomes across passes so no
// platform is ever called twice.
func (r *Runner) processExecution(exec *service.Execution, workerID int) {
	logger := r.logger.With(
		"task_id", exec.TaskID,
		"worker_id", workerID,
	)

	logger.Info("processing execution")

	for attempt := 0; ; attempt++ {
		err := r.executor.Run(r.ctx, exec)
		if err == nil {
			logger.Info("execution completed")
			return
		}

		if !store.IsTransientError(err) {
			logger.Error("execution failed permanently", "error", err)
			r.errHandler(exec, err)
			return
		}

		if attempt >= r.config.MaxRetries {
			logger.Error("execution retry budget exhausted",
				"max_retries", r.config.MaxRetries,
				"error", err)
			r.errHandler(exec, err)
			return
		}

		delay := time.Duration(float64(r.config.RetryBaseDelay) * math.Pow(2, float64(attempt)))
		logger.Warn("transient failure, retrying execution",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		if sleepErr := r.clock.Sleep(r.ctx, delay); sleepErr != nil {
			logger.Info("runner shutting down, abandoning retry")
			return
		}
	}
}
