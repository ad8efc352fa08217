package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kieran-voss/loopdriver/internal/agentexec"
	"github.com/kieran-voss/loopdriver/internal/agentpool"
	"github.com/kieran-voss/loopdriver/internal/config"
	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/event"
	"github.com/kieran-voss/loopdriver/internal/execmanager"
	"github.com/kieran-voss/loopdriver/internal/logging"
	"github.com/kieran-voss/loopdriver/internal/orchestrator"
	"github.com/kieran-voss/loopdriver/internal/session"
	"github.com/kieran-voss/loopdriver/internal/task"
	"github.com/kieran-voss/loopdriver/internal/vcs"
	"github.com/kieran-voss/loopdriver/internal/wakeup"
)

// buildEngine wires a Config and a resumed or freshly-started Session
// into a ready-to-run Orchestrator.
func buildEngine(cfg *config.Config, sess *session.Session, projectDir, stateDir string) (*orchestrator.Orchestrator, error) {
	commands := make(map[string]string, len(cfg.Agents.Kinds))
	for kind, kc := range cfg.Agents.Kinds {
		commands[kind] = kc.ResolveCommand()
	}

	available, err := orchestrator.CheckPreconditions(projectDir, commands)
	if err != nil {
		return nil, err
	}

	// The pool breaks equal health scores by the order of the kinds it
	// is given: the configured fallback order, then any other detected
	// kind.
	ordered := make([]string, 0, len(available))
	for _, kind := range append(append([]string{}, cfg.Agents.FallbackOrder...), available...) {
		if slices.Contains(available, kind) && !slices.Contains(ordered, kind) {
			ordered = append(ordered, kind)
		}
	}
	available = ordered

	var poolOpts []agentpool.Option
	poolOpts = append(poolOpts, agentpool.WithPauseThreshold(cfg.Agents.MaxConsecutiveFailures))
	for _, kind := range available {
		kc := cfg.Agents.Kinds[kind]
		minutes := float64(kc.CooldownMinutes) * cfg.Agents.CooldownMultiplier
		poolOpts = append(poolOpts, agentpool.WithCooldown(kind, time.Duration(minutes*float64(time.Minute))))
	}
	pool := agentpool.New(available, poolOpts...)

	executors := make(map[string]*agentexec.Executor, len(available))
	for _, kind := range available {
		kc := cfg.Agents.Kinds[kind]
		exec := newExecutor(kind, kc.ResolveCommand(), time.Duration(cfg.Orchestrator.CallTimeoutMs)*time.Millisecond)
		exec.Args = append(exec.Args, presetFlags(kc, cfg.Agents.Preset)...)
		exec.Dir = projectDir
		exec.DebugDir = stateDir
		executors[kind] = exec
	}

	store, err := task.Load(stateDir)
	if err != nil {
		store = task.New()
	}
	mgr := execmanager.New(pool, executors, store, buildWorkerPrompt)

	repo := vcs.New(projectDir)
	bus := event.NewBus()
	wake := wakeup.New(cfg.Orchestrator.WakeupThreshold)

	log, err := logging.NewLogger(filepath.Join(stateDir, "logs"), strings.ToUpper(cfg.Logging.Level))
	if err != nil {
		return nil, err
	}
	if !cfg.Logging.Enabled {
		log = logging.NopLogger()
	}

	ocfg := orchestrator.Config{
		MaxCycles:          cfg.Orchestrator.MaxCycles,
		MaxWorkers:         cfg.Orchestrator.MaxWorkers,
		CallTimeout:        time.Duration(cfg.Orchestrator.CallTimeoutMs) * time.Millisecond,
		CycleTimeout:       time.Duration(cfg.Orchestrator.CycleTimeoutMs) * time.Millisecond,
		WakeupThreshold:    cfg.Orchestrator.WakeupThreshold,
		MinAvailableAgents: cfg.Orchestrator.MinAvailableAgents,
	}

	return orchestrator.New(ocfg, sess, store, pool, mgr, repo, bus, wake, log, stateDir), nil
}

// newExecutor builds the Agent Executor for a kind using its preset
// default arguments, fixing one set of CLI flags per agent kind.
func newExecutor(kind, command string, callTimeout time.Duration) *agentexec.Executor {
	var exec *agentexec.Executor
	switch kind {
	case "claude":
		exec = agentexec.NewClaude(command)
	case "codex":
		exec = agentexec.NewCodex(command)
	case "gemini":
		exec = agentexec.NewGemini(command)
	default:
		exec = agentexec.New(agentexec.Kind(kind), command, nil)
	}
	exec.CallTimeout = callTimeout
	return exec
}

// presetFlags builds the model and reasoning-effort flags for a kind
// under the session's active preset, looking each up in the kind's
// configured Model/Reasoning maps. A preset with no entry for this kind
// contributes no flag, leaving the CLI's own default in effect.
func presetFlags(kc config.AgentKindConfig, preset string) []string {
	var flags []string
	if model, ok := kc.Model[preset]; ok && model != "" {
		flags = append(flags, "--model", model)
	}
	if reasoning, ok := kc.Reasoning[preset]; ok && reasoning != "" {
		flags = append(flags, "--reasoning-effort", reasoning)
	}
	return flags
}

// buildWorkerPrompt renders the Worker prompt from a task's title,
// description, and touched files.
func buildWorkerPrompt(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n%s\n", t.Title, t.Description)
	if len(t.Files) > 0 {
		b.WriteString("\nRelevant files:\n")
		for _, f := range t.Files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString("\nImplement this task, commit cleanly, and resolve any git conflicts yourself.\n")
	return b.String()
}

// fatalErrorMessage renders err the way an operator-facing CLI should:
// domain errors surface their message directly, anything else is
// wrapped with enough context to diagnose without a stack trace.
func fatalErrorMessage(action string, err error) string {
	var de engerrors.DomainError
	if errors.As(err, &de) {
		return de.Error()
	}
	return fmt.Sprintf("%s: %v", action, err)
}
