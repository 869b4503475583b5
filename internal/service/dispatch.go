package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/platform/logger"
	"github.com/castpost/castpost-api/internal/store"
)

// ErrAlreadyDispatched is returned when a dispatch request loses the claim:
// another dispatcher (concurrent "post now", or the due-time scan) already
// flipped the task to queued, or the task is past dispatch entirely.
var ErrAlreadyDispatched = errors.New("task already dispatched")

// Submitter enqueues an execution for asynchronous processing by the task
// runner.
type Submitter interface {
	Submit(ctx context.Context, exec *Execution) error
}

// DispatchService turns "post now" requests and due scheduled tasks into
// exactly one execution per task. The claim (a row-locked status flip to
// queued) happens here, synchronously, so both dispatch paths share the same
// lock discipline and the caller learns immediately whether it won.
type DispatchService struct {
	tx        store.TxRunner
	tasks     store.TaskStore
	submitter Submitter
	logger    *slog.Logger
}

// NewDispatchService creates a dispatch service.
func NewDispatchService(tx store.TxRunner, tasks store.TaskStore, submitter Submitter, log *slog.Logger) *DispatchService {
	return &DispatchService{
		tx:        tx,
		tasks:     tasks,
		submitter: submitter,
		logger:    log,
	}
}

// PostNow claims the task and enqueues its execution. It serves both the
// immediate-publish API and early re-dispatch of an already-scheduled task.
//
// Returns ErrAlreadyDispatched when a concurrent dispatch won the claim and
// store.ErrTaskNotFound when the task does not exist.
func (s *DispatchService) PostNow(ctx context.Context, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("task_id", taskID.String()))

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := s.tasks.WithTxTaskStore(tx).ClaimForExecution(ctx, taskID)
		return err
	})
	switch {
	case errors.Is(err, store.ErrNotDispatchable):
		log.InfoContext(ctx, "dispatch lost claim, task already queued or terminal")
		return ErrAlreadyDispatched
	case err != nil:
		return fmt.Errorf("claiming task %s: %w", taskID, err)
	}

	exec := NewExecution(taskID)
	exec.Claimed = true

	if err := s.submitter.Submit(ctx, exec); err != nil {
		// The task is already queued; losing the submit strands it there
		// until an operator re-dispatches. Surface loudly.
		log.ErrorContext(ctx, "task claimed but execution could not be enqueued", slog.Any("error", err))
		return fmt.Errorf("enqueueing execution for task %s: %w", taskID, err)
	}

	log.InfoContext(ctx, "task dispatched")
	return nil
}

// DispatchDue claims and enqueues every scheduled task whose scheduled_at is
// at or before now, up to limit tasks. Claim losses are skipped silently:
// another instance scanning the same window is expected. Returns the number
// of tasks dispatched.
func (s *DispatchService) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	due, err := s.tasks.ListDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("listing due tasks: %w", err)
	}

	dispatched := 0
	for _, task := range due {
		err := s.PostNow(ctx, task.ID)
		switch {
		case errors.Is(err, ErrAlreadyDispatched), store.IsNotFoundError(err):
			continue
		case err != nil:
			// Keep scanning; the task stays scheduled and the next scan
			// picks it up.
			log.WarnContext(ctx, "due task dispatch failed",
				slog.String("task_id", task.ID.String()),
				slog.Any("error", err))
			continue
		}
		dispatched++
	}

	return dispatched, nil
}
