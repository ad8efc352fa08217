// Package task implements the Task Store: the ordered collection of
// work items the orchestrator claims, executes, and retires, with an
// append-only attempt history per task.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	// StatusPending indicates the task is waiting to be claimed.
	StatusPending Status = "pending"

	// StatusInProgress indicates a worker has claimed the task and is
	// currently executing it.
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the task finished successfully. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task exhausted its retries, or failed
	// in a category that forbids retry. Terminal.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AttemptResult is the outcome recorded for one AgentAttempt.
type AttemptResult string

const (
	ResultCompleted   AttemptResult = "completed"
	ResultFailed      AttemptResult = "failed"
	ResultTimeout     AttemptResult = "timeout"
	ResultRateLimited AttemptResult = "rate_limited"
)

// ErrorCategory is the fixed taxonomy the Error Classifier maps raw
// subprocess output onto.
type ErrorCategory string

const (
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCrash         ErrorCategory = "crash"
	CategoryInvalidOutput ErrorCategory = "invalid_output"
	CategoryGitConflict   ErrorCategory = "git_conflict"
	CategoryPermission    ErrorCategory = "permission"
	CategoryNetwork       ErrorCategory = "network"
	CategoryUnknown       ErrorCategory = "unknown"
)

// ErrorInfo is produced by the Error Classifier and attached to a task's
// LastError and to the AgentAttempt that failed.
type ErrorInfo struct {
	Category      ErrorCategory `json:"category"`
	Message       string        `json:"message"`
	OccurredAt    time.Time     `json:"occurred_at"`
	Agent         string        `json:"agent"`
	OutputSnippet string        `json:"output_snippet"`
}

// AgentAttempt records one start-to-finish execution of a task by one
// agent kind. Appended atomically with every transition out of
// StatusInProgress; the history is append-only.
type AgentAttempt struct {
	AgentKind string        `json:"agent_kind"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Result    AttemptResult `json:"result"`
	Error     *ErrorInfo    `json:"error,omitempty"`
}

// Task is a unit of work created by the Planner Runner (or a
// sub-planner) and executed by a Worker.
type Task struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Status         Status         `json:"status"`
	AssignedAgent  string         `json:"assigned_agent,omitempty"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Files          []string       `json:"files,omitempty"`
	NeedsWebSearch bool           `json:"needs_web_search"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Attempts       int            `json:"attempts"`
	MaxAttempts    int            `json:"max_attempts"`
	LastError      *ErrorInfo     `json:"last_error,omitempty"`
	AgentHistory   []AgentAttempt `json:"agent_history,omitempty"`
}

// Snapshot returns a summary suitable for embedding in a Planner or
// Judge prompt, without the full attempt history.
type Snapshot struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}
