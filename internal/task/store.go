package task

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/util"
)

const defaultMaxAttempts = 3

// Store maintains the task list and enforces status transitions. All
// methods are safe for concurrent use via an internal mutex; Claim is
// the hotspot and must be linearizable, since workers call it without
// any coordination between themselves.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string // creation order, used for persistence and listings
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]*Task),
	}
}

// CreateTask builds a new pending Task with a fresh opaque ID. It does
// not add the task to the store; call Add to do that.
func CreateTask(title, description, createdBy string, files []string, maxAttempts int, needsWebSearch bool) *Task {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Task{
		ID:             util.NewID(),
		Title:          title,
		Description:    description,
		Status:         StatusPending,
		Files:          files,
		NeedsWebSearch: needsWebSearch,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
		MaxAttempts:    maxAttempts,
	}
}

// Add appends a task to the store. It fails only if a task with the
// same ID already exists.
func (s *Store) Add(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return engerrors.NewTaskError("task already exists", nil).WithTaskID(t.ID)
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

// pendingOrdered returns the IDs of pending tasks in creation order,
// with the lock already held by the caller.
func (s *Store) pendingOrdered() []string {
	var pending []string
	for _, id := range s.order {
		if s.tasks[id].Status == StatusPending {
			pending = append(pending, id)
		}
	}
	return pending
}

// Claim atomically selects one pending task for workerIndex and moves it
// to in_progress. Selection is deterministic by worker ordinal: among
// the n currently pending tasks (in creation order), worker index k
// takes the task at position k mod n. With N concurrent workers and n
// pending tasks, this spreads distinct workers across distinct tasks
// when N <= n, and deliberately duplicates assignment when N > n — the
// caller tolerates that (see the note on this claim strategy in
// DESIGN.md). Returns (nil, nil) when there is no pending task.
func (s *Store) Claim(workerIndex int, workerID, agentKind string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.pendingOrdered()
	n := len(pending)
	if n == 0 {
		return nil, nil
	}

	id := pending[workerIndex%n]
	t := s.tasks[id]

	now := time.Now()
	t.Status = StatusInProgress
	t.AssignedAgent = agentKind
	t.WorkerID = workerID
	t.StartedAt = &now
	t.Attempts++

	cp := *t
	return &cp, nil
}

// Complete transitions a task to completed and appends a successful
// AgentAttempt.
func (s *Store) Complete(taskID, agentKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return engerrors.NewTaskError("complete failed", engerrors.ErrTaskNotFound).WithTaskID(taskID)
	}
	if t.Status != StatusInProgress {
		return engerrors.NewTaskError(
			fmt.Sprintf("cannot complete task in status %s", t.Status),
			engerrors.ErrTaskWrongStatus,
		).WithTaskID(taskID)
	}

	now := time.Now()
	started := t.StartedAt
	if started == nil {
		started = &now
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.AgentHistory = append(t.AgentHistory, AgentAttempt{
		AgentKind: agentKind,
		StartedAt: *started,
		EndedAt:   now,
		Result:    ResultCompleted,
	})
	return nil
}

// SetAssignedAgent updates the agent kind currently assigned to a task.
// The real kind isn't known at claim time — agentpool.Select() runs
// after Claim — so the caller sets this once it has made that choice,
// before executing the task against it.
func (s *Store) SetAssignedAgent(taskID, agentKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return engerrors.NewTaskError("set_assigned_agent failed", engerrors.ErrTaskNotFound).WithTaskID(taskID)
	}
	t.AssignedAgent = agentKind
	return nil
}

// RecordError appends a failed AgentAttempt derived from info's category
// and sets the task's LastError. It does not by itself change Status;
// callers decide between Release and MarkFailed based on attempts and
// the classifier's retry policy.
func (s *Store) RecordError(taskID string, info ErrorInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return engerrors.NewTaskError("record_error failed", engerrors.ErrTaskNotFound).WithTaskID(taskID)
	}

	now := time.Now()
	started := t.StartedAt
	if started == nil {
		started = &now
	}

	result := attemptResultFor(info.Category)
	t.AgentHistory = append(t.AgentHistory, AgentAttempt{
		AgentKind: t.AssignedAgent,
		StartedAt: *started,
		EndedAt:   now,
		Result:    result,
		Error:     &info,
	})
	t.LastError = &info
	return nil
}

func attemptResultFor(category ErrorCategory) AttemptResult {
	switch category {
	case CategoryRateLimit:
		return ResultRateLimited
	case CategoryTimeout:
		return ResultTimeout
	default:
		return ResultFailed
	}
}

// Release returns a task to pending and clears its assignment. Used
// when an error is retryable and attempts remain.
func (s *Store) Release(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return engerrors.NewTaskError("release failed", engerrors.ErrTaskNotFound).WithTaskID(taskID)
	}
	if t.Status.IsTerminal() {
		return engerrors.NewTaskError(
			fmt.Sprintf("cannot release terminal task in status %s", t.Status),
			engerrors.ErrTaskWrongStatus,
		).WithTaskID(taskID)
	}

	t.Status = StatusPending
	t.AssignedAgent = ""
	t.WorkerID = ""
	t.StartedAt = nil
	return nil
}

// MarkFailed transitions a task to the terminal failed status.
func (s *Store) MarkFailed(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return engerrors.NewTaskError("mark_failed failed", engerrors.ErrTaskNotFound).WithTaskID(taskID)
	}

	now := time.Now()
	t.Status = StatusFailed
	t.CompletedAt = &now
	return nil
}

// ReleaseStuck moves every in_progress task back to pending. Called at
// cycle boundaries and on resume as a safety net against a crash that
// left tasks claimed but never completed. Idempotent: a second call
// with nothing in_progress is a no-op and returns 0.
func (s *Store) ReleaseStuck() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == StatusInProgress {
			t.Status = StatusPending
			t.AssignedAgent = ""
			t.WorkerID = ""
			t.StartedAt = nil
			count++
		}
	}
	return count
}

// Get returns a copy of the task with the given ID, or nil if not found.
func (s *Store) Get(taskID string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// All returns copies of every task in creation order.
func (s *Store) All() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.tasks[id]
		result = append(result, &cp)
	}
	return result
}

// CountsByStatus summarizes how many tasks are in each status.
type CountsByStatus struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// Counts returns the current count of tasks per status.
func (s *Store) Counts() CountsByStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c CountsByStatus
	c.Total = len(s.tasks)
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Snapshots returns compact summaries of tasks in the given status,
// sorted by ID for deterministic prompt rendering.
func (s *Store) Snapshots(status Status) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Snapshot
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == status {
			out = append(out, Snapshot{ID: t.ID, Title: t.Title, Status: t.Status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
