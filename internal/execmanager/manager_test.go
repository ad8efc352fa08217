package execmanager

import (
	"context"
	"testing"
	"time"

	"github.com/kieran-voss/loopdriver/internal/agentexec"
	"github.com/kieran-voss/loopdriver/internal/agentpool"
	"github.com/kieran-voss/loopdriver/internal/task"
)

func scripted(kind agentexec.Kind, script string) *agentexec.Executor {
	return &agentexec.Executor{
		Kind:        kind,
		Command:     "sh",
		Args:        []string{"-c", script},
		CallTimeout: 5 * time.Second,
	}
}

func newTask(t *testing.T, s *task.Store) *task.Task {
	t.Helper()
	tk := task.CreateTask("title", "desc", "planner", nil, 3, false)
	if err := s.Add(tk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Claim(0, "w0", ""); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	return s.Get(tk.ID)
}

func TestExecuteTask_SuccessCompletesTask(t *testing.T) {
	pool := agentpool.New([]string{"claude"})
	store := task.New()
	tk := newTask(t, store)

	executors := map[string]*agentexec.Executor{
		"claude": scripted(agentexec.KindClaude, `cat >/dev/null; printf '{"type":"result","subtype":"success","result":"ok","is_error":false}'`),
	}
	m := New(pool, executors, store, func(*task.Task) string { return "do it" })

	if err := m.ExecuteTask(context.Background(), tk); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}

	got := store.Get(tk.ID)
	if got.Status != task.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.AssignedAgent != "claude" {
		t.Errorf("expected AssignedAgent to be set to the kind that ran it, got %q", got.AssignedAgent)
	}
}

func TestExecuteTask_RecordsRealAgentKindOnAFailedAttempt(t *testing.T) {
	pool := agentpool.New([]string{"claude"})
	store := task.New()
	tk := newTask(t, store)

	executors := map[string]*agentexec.Executor{
		"claude": scripted(agentexec.KindClaude, `cat >/dev/null; printf 'segfault'; exit 139`),
	}
	m := New(pool, executors, store, func(*task.Task) string { return "do it" })

	_ = m.ExecuteTask(context.Background(), tk)

	got := store.Get(tk.ID)
	if len(got.AgentHistory) == 0 || got.AgentHistory[0].AgentKind != "claude" {
		t.Errorf("expected the failed attempt's agent_kind to be claude, not the empty claim-time value, got %+v", got.AgentHistory)
	}
}

func TestExecuteTask_RateLimitFailsOverToAnotherKind(t *testing.T) {
	pool := agentpool.New([]string{"claude", "codex"})
	store := task.New()
	tk := newTask(t, store)

	executors := map[string]*agentexec.Executor{
		"claude": scripted(agentexec.KindClaude, `cat >/dev/null; printf 'rate limit exceeded'; exit 1`),
		"codex":  scripted(agentexec.KindCodex, `cat >/dev/null; printf '{"type":"item.completed","item":{"type":"agent_message","text":"done"}}\n{"type":"turn.completed"}\n'`),
	}
	m := New(pool, executors, store, func(*task.Task) string { return "do it" })

	if err := m.ExecuteTask(context.Background(), tk); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}

	got := store.Get(tk.ID)
	if got.Status != task.StatusCompleted {
		t.Fatalf("expected eventual completion via failover, got %s", got.Status)
	}
	if got.AgentHistory[len(got.AgentHistory)-1].AgentKind != "codex" {
		t.Errorf("expected final successful attempt recorded against codex, got %+v", got.AgentHistory)
	}

	claudeState := pool.State("claude")
	if claudeState.Status != agentpool.StatusCooldown {
		t.Errorf("expected claude on cooldown after rate limit, got %s", claudeState.Status)
	}
}

func TestExecuteTask_PermissionFailureMarksTaskFailed(t *testing.T) {
	pool := agentpool.New([]string{"claude"})
	store := task.New()
	tk := newTask(t, store)

	executors := map[string]*agentexec.Executor{
		"claude": scripted(agentexec.KindClaude, `cat >/dev/null; printf 'permission denied'; exit 1`),
	}
	m := New(pool, executors, store, func(*task.Task) string { return "do it" })

	if err := m.ExecuteTask(context.Background(), tk); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}

	got := store.Get(tk.ID)
	if got.Status != task.StatusFailed {
		t.Errorf("expected failed for a non-retryable category, got %s", got.Status)
	}
}

func TestDetectAvailable_FiltersByPathLookup(t *testing.T) {
	got := DetectAvailable(map[string]string{"always": "sh", "never": "this-binary-does-not-exist-xyz"})
	if len(got) != 1 || got[0] != "always" {
		t.Errorf("expected only the resolvable command detected, got %v", got)
	}
}
