package orchestrator

import (
	"time"

	"github.com/kieran-voss/loopdriver/internal/session"
)

// Result is the user-visible outcome spec.md §7 requires the engine to
// always produce on termination, successful or not.
type Result struct {
	SessionID      string
	Status         session.Status
	Reason         string
	TotalCycles    int
	TasksCreated   int
	TasksCompleted int
	TasksFailed    int
	Duration       time.Duration
	Message        string
}

func (o *Orchestrator) buildResult(started time.Time) Result {
	counts := o.session.Stats
	message := "session completed successfully"
	if o.session.Status == session.StatusAborted {
		message = "session aborted: " + o.session.PauseReason
	} else if o.session.Status != session.StatusCompleted {
		message = "session left " + string(o.session.Status)
	}

	return Result{
		SessionID:      o.session.SessionID,
		Status:         o.session.Status,
		Reason:         o.session.PauseReason,
		TotalCycles:    o.session.CurrentCycle,
		TasksCreated:   counts.TasksCreated,
		TasksCompleted: counts.TasksCompleted,
		TasksFailed:    counts.TasksFailed,
		Duration:       time.Since(started),
		Message:        message,
	}
}
