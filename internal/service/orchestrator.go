package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/credential"
	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/platform/logger"
	"github.com/castpost/castpost-api/internal/publish"
	"github.com/castpost/castpost-api/internal/store"
)

// Execution is the unit of work handed to the task runner for one dispatch.
// It survives job-layer retries: publish outcomes already reached are cached
// on the struct, so a retry after a persistence failure re-commits the cached
// outcomes instead of calling the platforms again.
type Execution struct {
	// TaskID identifies the task being executed.
	TaskID uuid.UUID

	// Claimed records whether the task has already been flipped to queued.
	// The dispatcher claims synchronously; an unclaimed execution is claimed
	// on first run.
	Claimed bool

	results map[uuid.UUID]*selectionResult
}

// NewExecution creates an unclaimed execution for the task.
func NewExecution(taskID uuid.UUID) *Execution {
	return &Execution{
		TaskID:  taskID,
		results: make(map[uuid.UUID]*selectionResult),
	}
}

// selectionResult is the settled outcome for one platform selection. The
// attempt and error log rows are built once, at publish time, so a retried
// persistence pass writes identical rows.
type selectionResult struct {
	status  domain.PublishStatus
	attempt *domain.PostAttempt
	errLog  *domain.ErrorLog
}

// ExecutionOrchestrator drives a queued task through every scheduled platform
// selection: resolve credential, publish via the adapter registry, record the
// attempt, and commit all state changes in a single transaction.
type ExecutionOrchestrator struct {
	tx          store.TxRunner
	tasks       store.TaskStore
	selections  store.SelectionStore
	platforms   store.PlatformStore
	contents    store.ContentStore
	attempts    store.AttemptStore
	errorLogs   store.ErrorLogStore
	credentials credential.Store
	registry    *publish.Registry
	clock       publish.Clock
	logger      *slog.Logger
}

// NewExecutionOrchestrator creates an orchestrator. clock may be nil, in
// which case the system clock is used.
func NewExecutionOrchestrator(
	tx store.TxRunner,
	tasks store.TaskStore,
	selections store.SelectionStore,
	platforms store.PlatformStore,
	contents store.ContentStore,
	attempts store.AttemptStore,
	errorLogs store.ErrorLogStore,
	credentials credential.Store,
	registry *publish.Registry,
	clock publish.Clock,
	log *slog.Logger,
) *ExecutionOrchestrator {
	if clock == nil {
		clock = publish.SystemClock{}
	}
	return &ExecutionOrchestrator{
		tx:          tx,
		tasks:       tasks,
		selections:  selections,
		platforms:   platforms,
		contents:    contents,
		attempts:    attempts,
		errorLogs:   errorLogs,
		credentials: credentials,
		registry:    registry,
		clock:       clock,
		logger:      log,
	}
}

// Run executes the task. It is safe to call again with the same Execution
// after a transient failure: already-published selections are not republished
// and already-terminal selections are skipped.
//
// Errors wrapping store.ErrTransient signal the runner to requeue; any other
// error is permanent for this dispatch.
func (o *ExecutionOrchestrator) Run(ctx context.Context, exec *Execution) error {
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.String("task_id", exec.TaskID.String()))

	if !exec.Claimed {
		err := o.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
			_, err := o.tasks.WithTxTaskStore(tx).ClaimForExecution(ctx, exec.TaskID)
			return err
		})
		switch {
		case errors.Is(err, store.ErrNotDispatchable):
			// A concurrent dispatcher won the claim; nothing to do.
			log.InfoContext(ctx, "task already claimed by another dispatch")
			return nil
		case store.IsNotFoundError(err):
			// The creating transaction may not be visible yet.
			return fmt.Errorf("task %s not found at claim: %w", exec.TaskID, store.ErrTransient)
		case err != nil:
			return fmt.Errorf("claiming task for execution: %w", err)
		}
		exec.Claimed = true
	}

	selections, err := o.selections.ListByTask(ctx, exec.TaskID)
	if err != nil {
		return fmt.Errorf("loading platform selections: %w", err)
	}

	content, err := o.contents.GetByTaskID(ctx, exec.TaskID)
	if err != nil && !store.IsNotFoundError(err) {
		return fmt.Errorf("loading generated content: %w", err)
	}

	// The platform loop is strictly sequential: it bounds per-task wall time
	// and keeps all writes to the task's rows on a single goroutine.
	for _, sel := range selections {
		if sel.PublishStatus != domain.PublishStatusScheduled {
			continue
		}
		if _, done := exec.results[sel.ID]; done {
			log.InfoContext(ctx, "selection outcome cached from previous pass",
				slog.String("selection_id", sel.ID.String()))
			continue
		}

		exec.results[sel.ID] = o.publishSelection(ctx, log, sel, content)
	}

	return o.persistResults(ctx, log, exec, selections)
}

// publishSelection runs one selection through credential validation and its
// platform adapter, returning the settled outcome. It never returns an error:
// every failure becomes a permanent_failure attempt with a linked error log.
func (o *ExecutionOrchestrator) publishSelection(
	ctx context.Context,
	log *slog.Logger,
	sel *domain.PlatformSelection,
	content *domain.GeneratedContent,
) *selectionResult {
	platform, err := o.platforms.GetByID(ctx, sel.PlatformID)
	if err != nil {
		return o.failureResult(sel, publish.NewError(publish.KindConfiguration, "",
			"platform record not found", err), 0)
	}

	log = log.With(slog.String("platform", platform.APIName))

	if content == nil {
		return o.failureResult(sel, publish.NewError(publish.KindConfiguration, "",
			"task has no generated content", nil), 0)
	}

	// Credential validation happens before any network call; a missing or
	// expired token fails the selection without touching the adapter.
	cred, err := o.credentials.GetValidToken(ctx, sel.PlatformID)
	if err != nil {
		log.WarnContext(ctx, "credential validation failed", slog.Any("error", err))
		return o.failureResult(sel, publish.NewError(publish.KindConfiguration, "",
			fmt.Sprintf("credential validation failed: %v", err), err), 0)
	}

	adapter, err := o.registry.Resolve(platform.APIName)
	if err != nil {
		return o.failureResult(sel, err, 0)
	}

	start := o.clock.Now()
	postID, err := adapter.Publish(ctx, cred, publish.ContentFromGenerated(content))
	latency := o.clock.Now().Sub(start)

	if err != nil {
		log.WarnContext(ctx, "publish failed",
			slog.String("kind", string(publish.KindOf(err))),
			slog.Duration("latency", latency),
			slog.Any("error", err))
		return o.failureResult(sel, err, latency)
	}

	log.InfoContext(ctx, "published",
		slog.String("post_id", postID),
		slog.Duration("latency", latency))

	response, marshalErr := json.Marshal(map[string]string{"post_id": postID})
	if marshalErr != nil {
		response = nil
	}

	attempt, attemptErr := domain.NewPostAttempt(
		sel.TaskID, sel.PlatformID, domain.AttemptStatusSuccess, response, latency)
	if attemptErr != nil {
		// Only reachable with corrupt selection IDs; treat as a failed selection.
		return o.failureResult(sel, publish.NewError(publish.KindUnknown, "",
			"failed to build attempt record", attemptErr), latency)
	}

	return &selectionResult{status: domain.PublishStatusPosted, attempt: attempt}
}

// failureResult builds the permanent-failure attempt and its linked error log
// for a selection that could not be published.
func (o *ExecutionOrchestrator) failureResult(sel *domain.PlatformSelection, cause error, latency time.Duration) *selectionResult {
	kind := string(publish.KindOf(cause))

	var code, message string
	var pubErr *publish.Error
	if errors.As(cause, &pubErr) {
		code = pubErr.Code
		message = pubErr.Message
	}

	details, marshalErr := json.Marshal(map[string]string{
		"kind":    kind,
		"code":    code,
		"message": message,
	})
	if marshalErr != nil {
		details = nil
	}

	entry, err := domain.NewErrorLog(kind, code, cause.Error(), details)
	if err != nil {
		// Message can only be empty if cause.Error() is; fall back to the kind.
		entry, _ = domain.NewErrorLog(kind, code, "publish failed", details)
	}
	entry.ForTask(sel.TaskID).ForPlatform(sel.PlatformID)

	attempt, _ := domain.NewPostAttempt(
		sel.TaskID, sel.PlatformID, domain.AttemptStatusPermanentFailure, details, latency)
	attempt.ErrorLogID = &entry.ID
	entry.ForAttempt(attempt.ID)

	return &selectionResult{
		status:  domain.PublishStatusFailed,
		attempt: attempt,
		errLog:  entry,
	}
}

// persistResults commits every outcome plus the task rollup in one
// transaction. A failure here rolls everything back and surfaces to the
// runner, which retries with the cached outcomes intact.
func (o *ExecutionOrchestrator) persistResults(
	ctx context.Context,
	log *slog.Logger,
	exec *Execution,
	selections []*domain.PlatformSelection,
) error {
	err := o.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		selStore := o.selections.WithTxSelectionStore(tx)
		attStore := o.attempts.WithTxAttemptStore(tx)
		logStore := o.errorLogs.WithTxErrorLogStore(tx)
		taskStore := o.tasks.WithTxTaskStore(tx)

		allPosted := true
		for _, sel := range selections {
			result, ok := exec.results[sel.ID]
			if !ok {
				if sel.PublishStatus != domain.PublishStatusPosted {
					allPosted = false
				}
				continue
			}

			if result.errLog != nil {
				if err := logStore.Create(ctx, result.errLog); err != nil {
					return fmt.Errorf("recording error log: %w", err)
				}
			}
			if err := attStore.Create(ctx, result.attempt); err != nil {
				return fmt.Errorf("recording attempt: %w", err)
			}
			if err := selStore.UpdatePublishStatus(ctx, sel.ID, result.status); err != nil {
				return fmt.Errorf("updating selection %s: %w", sel.ID, err)
			}

			if result.status != domain.PublishStatusPosted {
				allPosted = false
			}
		}

		finalStatus := domain.TaskStatusPosted
		if !allPosted {
			finalStatus = domain.TaskStatusFailed
		}

		if err := taskStore.UpdateStatus(ctx, exec.TaskID, finalStatus); err != nil {
			return fmt.Errorf("updating task status: %w", err)
		}

		log.InfoContext(ctx, "execution complete",
			slog.String("final_status", string(finalStatus)),
			slog.Int("selections_processed", len(exec.results)))
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting execution results: %w", err)
	}

	return nil
}
