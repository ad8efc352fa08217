// Package execmanager drives a single task (or a raw prompt, for the
// Planner and Judge) through agent selection, subprocess execution, and
// outcome recording, failing over to a different agent kind when the
// Error Classifier says the failure allows it.
package execmanager

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/kieran-voss/loopdriver/internal/agentexec"
	"github.com/kieran-voss/loopdriver/internal/agentpool"
	"github.com/kieran-voss/loopdriver/internal/classifier"
	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/task"
	"github.com/kieran-voss/loopdriver/internal/util"
)

// PromptBuilder renders the prompt sent to an agent for t.
type PromptBuilder func(t *task.Task) string

// Manager wires an agent pool's selection decisions to concrete
// subprocess executions and feeds the outcome back into both the pool
// (health tracking) and the task store (status/history).
type Manager struct {
	pool      *agentpool.Pool
	executors map[string]*agentexec.Executor
	store     *task.Store
	prompt    PromptBuilder

	// maxFailoverAttempts bounds the failover loop inside ExecuteTask
	// itself, independent of the classifier's own per-category
	// reassignment cap — it exists so a misconfigured pool with no
	// healthy kinds at all cannot loop forever.
	maxFailoverAttempts int
}

const defaultMaxFailoverAttempts = 4

// New creates a Manager. executors maps agent kind name to the
// Executor that runs it.
func New(pool *agentpool.Pool, executors map[string]*agentexec.Executor, store *task.Store, prompt PromptBuilder) *Manager {
	return &Manager{
		pool:                pool,
		executors:           executors,
		store:               store,
		prompt:              prompt,
		maxFailoverAttempts: defaultMaxFailoverAttempts,
	}
}

// DetectAvailable probes PATH for each candidate kind's command and
// returns the subset that resolves to an executable. commands maps
// kind name to the CLI binary name to look up.
func DetectAvailable(commands map[string]string) []string {
	var available []string
	for kind, command := range commands {
		if _, err := exec.LookPath(command); err == nil {
			available = append(available, kind)
		}
	}
	return available
}

// ExecuteTask runs t to completion or failure. It selects a healthy
// agent kind, executes the task's prompt against it, classifies any
// failure, and records the outcome on both the pool and the task store.
// On a rate-limit classification that still allows reassignment, it
// retries with a different kind rather than failing the task outright.
func (m *Manager) ExecuteTask(ctx context.Context, t *task.Task) error {
	for attempt := 0; attempt < m.maxFailoverAttempts; attempt++ {
		decision := m.pool.Select()
		switch decision.Outcome {
		case agentpool.OutcomeWait:
			return engerrors.NewAgentPoolError("no agent kind currently available", engerrors.ErrAgentOnCooldown).WithAgentKind("")
		case agentpool.OutcomePause:
			return engerrors.NewAgentPoolError("all agent kinds paused", engerrors.ErrNoAgentAvailable).WithAgentKind("")
		}

		kind := decision.Kind
		executor, ok := m.executors[kind]
		if !ok {
			return engerrors.NewAgentPoolError("no executor registered for kind", engerrors.ErrUnknownAgentKind).WithAgentKind(kind)
		}

		if err := m.pool.MarkBusy(kind); err != nil {
			return err
		}
		if err := m.store.SetAssignedAgent(t.ID, kind); err != nil {
			return err
		}

		result, execErr := executor.Run(ctx, m.prompt(t))

		if execErr == nil && result.Completed {
			_ = m.pool.RecordSuccess(kind, result.Duration)
			return m.store.Complete(t.ID, kind)
		}

		category := classifier.Classify(result.RawOutput, result.ExitCode)
		info := task.ErrorInfo{
			Category:      category,
			Message:       errMessage(execErr, result),
			OccurredAt:    time.Now(),
			Agent:         kind,
			OutputSnippet: util.TruncateString(result.RawOutput, snippetLimit),
		}
		if rErr := m.store.RecordError(t.ID, info); rErr != nil {
			return rErr
		}

		if category == task.CategoryRateLimit {
			_ = m.pool.MarkRateLimited(kind)
			if classifier.ShouldReassign(category, len(t.AgentHistory)+1) {
				continue
			}
			return m.store.MarkFailed(t.ID)
		}

		_ = m.pool.RecordFailure(kind, result.Duration)

		if classifier.ShouldRetry(category, t.Attempts, t.MaxAttempts) {
			return m.store.Release(t.ID)
		}
		return m.store.MarkFailed(t.ID)
	}

	return engerrors.NewAgentPoolError("failover attempts exhausted", engerrors.ErrFailoverExhausted).WithAgentKind("")
}

// ExecuteRaw runs prompt against the healthiest available agent kind
// without any task bookkeeping, for the Planner and Judge runners which
// consult an agent directly rather than through a Task.
func (m *Manager) ExecuteRaw(ctx context.Context, title, prompt string) (agentexec.Result, error) {
	decision := m.pool.Select()
	switch decision.Outcome {
	case agentpool.OutcomeWait:
		return agentexec.Result{}, engerrors.NewAgentPoolError(fmt.Sprintf("no agent available for %s", title), engerrors.ErrAgentOnCooldown)
	case agentpool.OutcomePause:
		return agentexec.Result{}, engerrors.NewAgentPoolError(fmt.Sprintf("all agents paused, cannot run %s", title), engerrors.ErrNoAgentAvailable)
	}

	kind := decision.Kind
	executor, ok := m.executors[kind]
	if !ok {
		return agentexec.Result{}, engerrors.NewAgentPoolError("no executor registered for kind", engerrors.ErrUnknownAgentKind).WithAgentKind(kind)
	}

	if err := m.pool.MarkBusy(kind); err != nil {
		return agentexec.Result{}, err
	}

	result, err := executor.Run(ctx, prompt)
	if err != nil {
		_ = m.pool.RecordFailure(kind, result.Duration)
		return result, err
	}
	_ = m.pool.RecordSuccess(kind, result.Duration)
	return result, nil
}

func errMessage(execErr error, result agentexec.Result) string {
	if execErr != nil {
		return execErr.Error()
	}
	return "agent did not report completion"
}

const snippetLimit = 500
