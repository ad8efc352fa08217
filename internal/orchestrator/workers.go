package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kieran-voss/loopdriver/internal/event"
	"github.com/kieran-voss/loopdriver/internal/task"
)

// runWorkerStage runs up to max_workers concurrent worker loops. Each
// worker claims a task, executes it, commits on success, and repeats
// until the Task Store has no pending task left for it, at which point
// it terminates. The stage returns once every worker loop has joined.
func (o *Orchestrator) runWorkerStage(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.MaxWorkers; i++ {
		wg.Add(1)
		go func(workerIndex int) {
			defer wg.Done()
			o.workerLoop(ctx, workerIndex)
		}(i)
	}
	wg.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context, workerIndex int) {
	workerID := fmt.Sprintf("worker-%d", workerIndex)

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		claimed, err := o.store.Claim(workerIndex, workerID, "")
		if err != nil {
			o.log.Error("claim failed", "worker", workerID, "error", err)
			return
		}
		if claimed == nil {
			return
		}

		o.runOneTask(ctx, workerID, claimed)
	}
}

// runOneTask executes one already-claimed task and reacts to its final
// status. A panic part-way through is recovered, the task released
// back to pending, and the worker's loop continues with its next
// claim — a single task's failure never terminates the cycle.
func (o *Orchestrator) runOneTask(ctx context.Context, workerID string, t *task.Task) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("worker panicked executing task", "worker", workerID, "task", t.ID, "panic", r)
			_ = o.store.Release(t.ID)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	if err := o.mgr.ExecuteTask(callCtx, t); err != nil {
		o.log.Warn("task execution errored", "worker", workerID, "task", t.ID, "error", err)
	}

	updated := o.store.Get(t.ID)
	if updated == nil {
		return
	}

	switch updated.Status {
	case task.StatusCompleted:
		o.commitTask(updated)
		o.bus.Publish(event.NewTaskCompletedEvent(updated.ID, updated.AssignedAgent, o.session.CurrentCycle, taskDuration(updated)))
	case task.StatusFailed:
		category := ""
		message := ""
		if updated.LastError != nil {
			category = string(updated.LastError.Category)
			message = updated.LastError.Message
		}
		o.bus.Publish(event.NewTaskFailedEvent(updated.ID, updated.AssignedAgent, o.session.CurrentCycle, category, message))
	}
}

// commitTask pulls and rebases onto the main branch, stages only the
// files the task named (or every change if it named none), and commits
// with the fixed "Task completed: <title>" message, all as one
// serialized critical section so concurrent workers never interleave.
func (o *Orchestrator) commitTask(t *task.Task) {
	if o.repo == nil {
		return
	}
	message := fmt.Sprintf("Task completed: %s", t.Title)
	if err := o.repo.RebaseAndCommitFiles(t.Files, message); err != nil {
		o.log.Warn("failed to commit completed task", "task", t.ID, "error", err)
	}
}

func taskDuration(t *task.Task) time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}
