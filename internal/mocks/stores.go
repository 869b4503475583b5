package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castpost/castpost-api/internal/domain"
	"github.com/castpost/castpost-api/internal/store"
)

// TxRunner runs transaction functions directly against the in-memory stores.
// Failures can be scripted to simulate begin/commit errors.
type TxRunner struct {
	mu       sync.Mutex
	failures int
	failErr  error
}

// NewTxRunner creates a passthrough transaction runner.
func NewTxRunner() *TxRunner {
	return &TxRunner{}
}

// FailNext makes the next n transactions fail with err before the function runs.
func (r *TxRunner) FailNext(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
	r.failErr = err
}

// RunInTransaction implements store.TxRunner.
func (r *TxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		err := r.failErr
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	return fn(ctx, nil)
}

// TaskStore is an in-memory store.TaskStore. Claim semantics match the
// database implementation: the internal mutex stands in for the row lock.
type TaskStore struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]*domain.Task
	claims int
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Put inserts or replaces a task.
func (s *TaskStore) Put(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Claims reports how many dispatch claims succeeded.
func (s *TaskStore) Claims() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// ClaimForExecution implements store.TaskStore.
func (s *TaskStore) ClaimForExecution(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if !task.IsDispatchable() {
		return nil, store.ErrNotDispatchable
	}

	task.Status = domain.TaskStatusQueued
	task.UpdatedAt = time.Now().UTC()
	s.claims++

	copied := *task
	return &copied, nil
}

// UpdateStatus implements store.TaskStore.
func (s *TaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// ListDue implements store.TaskStore.
func (s *TaskStore) ListDue(ctx context.Context, due time.Time, limit int) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Task
	for _, task := range s.tasks {
		if task.Status != domain.TaskStatusScheduled {
			continue
		}
		if task.ScheduledAt == nil || task.ScheduledAt.After(due) {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTxTaskStore implements store.TaskStore.
func (s *TaskStore) WithTxTaskStore(tx *sql.Tx) store.TaskStore { return s }

// SelectionStore is an in-memory store.SelectionStore.
type SelectionStore struct {
	mu         sync.Mutex
	selections map[uuid.UUID]*domain.PlatformSelection
}

// NewSelectionStore creates an empty in-memory selection store.
func NewSelectionStore() *SelectionStore {
	return &SelectionStore{selections: make(map[uuid.UUID]*domain.PlatformSelection)}
}

// Put inserts or replaces a selection.
func (s *SelectionStore) Put(sel *domain.PlatformSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[sel.ID] = sel
}

// ListByTask implements store.SelectionStore.
func (s *SelectionStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PlatformSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.PlatformSelection
	for _, sel := range s.selections {
		if sel.TaskID == taskID {
			copied := *sel
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetByID implements store.SelectionStore.
func (s *SelectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PlatformSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.selections[id]
	if !ok {
		return nil, store.ErrSelectionNotFound
	}
	copied := *sel
	return &copied, nil
}

// UpdatePublishStatus implements store.SelectionStore, including the
// terminal-row guard.
func (s *SelectionStore) UpdatePublishStatus(ctx context.Context, id uuid.UUID, status domain.PublishStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel, ok := s.selections[id]
	if !ok {
		return store.ErrSelectionNotFound
	}
	if sel.PublishStatus == domain.PublishStatusPosted || sel.PublishStatus == domain.PublishStatusFailed {
		return store.ErrUpdateFailed
	}
	sel.PublishStatus = status
	sel.UpdatedAt = time.Now().UTC()
	return nil
}

// WithTxSelectionStore implements store.SelectionStore.
func (s *SelectionStore) WithTxSelectionStore(tx *sql.Tx) store.SelectionStore { return s }

// PlatformStore is an in-memory store.PlatformStore.
type PlatformStore struct {
	mu        sync.Mutex
	platforms map[uuid.UUID]*domain.Platform
}

// NewPlatformStore creates an empty in-memory platform store.
func NewPlatformStore() *PlatformStore {
	return &PlatformStore{platforms: make(map[uuid.UUID]*domain.Platform)}
}

// Put inserts or replaces a platform.
func (s *PlatformStore) Put(platform *domain.Platform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platforms[platform.ID] = platform
}

// GetByID implements store.PlatformStore.
func (s *PlatformStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	platform, ok := s.platforms[id]
	if !ok {
		return nil, store.ErrPlatformNotFound
	}
	copied := *platform
	return &copied, nil
}

// ContentStore is an in-memory store.ContentStore.
type ContentStore struct {
	mu       sync.Mutex
	contents map[uuid.UUID]*domain.GeneratedContent
}

// NewContentStore creates an empty in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{contents: make(map[uuid.UUID]*domain.GeneratedContent)}
}

// Put sets the content for a task.
func (s *ContentStore) Put(content *domain.GeneratedContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[content.TaskID] = content
}

// GetByTaskID implements store.ContentStore.
func (s *ContentStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.GeneratedContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[taskID]
	if !ok {
		return nil, store.ErrContentNotFound
	}
	copied := *content
	return &copied, nil
}

// AttemptStore is an in-memory store.AttemptStore.
type AttemptStore struct {
	mu       sync.Mutex
	attempts []*domain.PostAttempt
}

// NewAttemptStore creates an empty in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

// Create implements store.AttemptStore.
func (s *AttemptStore) Create(ctx context.Context, attempt *domain.PostAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *attempt
	s.attempts = append(s.attempts, &copied)
	return nil
}

// ListByTask implements store.AttemptStore.
func (s *AttemptStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.PostAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PostAttempt
	for _, attempt := range s.attempts {
		if attempt.TaskID == taskID {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	return out, nil
}

// WithTxAttemptStore implements store.AttemptStore.
func (s *AttemptStore) WithTxAttemptStore(tx *sql.Tx) store.AttemptStore { return s }

// ErrorLogStore is an in-memory store.ErrorLogStore.
type ErrorLogStore struct {
	mu      sync.Mutex
	entries []*domain.ErrorLog
}

// NewErrorLogStore creates an empty in-memory error log store.
func NewErrorLogStore() *ErrorLogStore {
	return &ErrorLogStore{}
}

// Create implements store.ErrorLogStore.
func (s *ErrorLogStore) Create(ctx context.Context, entry *domain.ErrorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// ListByTask implements store.ErrorLogStore.
func (s *ErrorLogStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ErrorLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ErrorLog
	for _, entry := range s.entries {
		if entry.TaskID != nil && *entry.TaskID == taskID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}

// WithTxErrorLogStore implements store.ErrorLogStore.
func (s *ErrorLogStore) WithTxErrorLogStore(tx *sql.Tx) store.ErrorLogStore { return s }
