// Package orchestrator drives the Planner/Worker/Judge cycle loop: one
// goroutine owns the cycle counter and session status, dispatching to
// the Planner Runner, a bounded pool of concurrent workers, and the
// Judge Runner in strict sequence each cycle.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kieran-voss/loopdriver/internal/agentpool"
	"github.com/kieran-voss/loopdriver/internal/event"
	"github.com/kieran-voss/loopdriver/internal/execmanager"
	"github.com/kieran-voss/loopdriver/internal/judge"
	"github.com/kieran-voss/loopdriver/internal/logging"
	"github.com/kieran-voss/loopdriver/internal/planner"
	"github.com/kieran-voss/loopdriver/internal/session"
	"github.com/kieran-voss/loopdriver/internal/task"
	"github.com/kieran-voss/loopdriver/internal/vcs"
	"github.com/kieran-voss/loopdriver/internal/wakeup"
)

// Config holds the tunables spec.md §6 lists under "Configuration".
type Config struct {
	MaxCycles       int
	MaxWorkers      int
	CallTimeout     time.Duration
	CycleTimeout    time.Duration
	WakeupThreshold int
	// MinAvailableAgents is the minimum number of healthy agent kinds
	// required to keep running; allAgentsUnavailable pauses the session
	// once the pool has fewer available/busy kinds than this.
	MinAvailableAgents int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxCycles:          20,
		MaxWorkers:         3,
		CallTimeout:        300 * time.Second,
		CycleTimeout:       600 * time.Second,
		WakeupThreshold:    3,
		MinAvailableAgents: 1,
	}
}

// Orchestrator owns the cycle counter and session status, and is the
// only component that mutates either. The Task Store and Agent Pool it
// holds are mutated exclusively by the Executor Manager and Workers.
type Orchestrator struct {
	cfg Config

	session *session.Session
	store   *task.Store
	pool    *agentpool.Pool
	mgr     *execmanager.Manager
	repo    *vcs.Repo
	bus     *event.Bus
	wake    *wakeup.Controller
	log     *logging.Logger

	stateDir string
}

// New wires an Orchestrator from its components. sess must already be
// persisted once by the caller (session.Save) before Run is called.
func New(cfg Config, sess *session.Session, store *task.Store, pool *agentpool.Pool, mgr *execmanager.Manager, repo *vcs.Repo, bus *event.Bus, wake *wakeup.Controller, log *logging.Logger, stateDir string) *Orchestrator {
	if log == nil {
		log = logging.NopLogger()
	}
	o := &Orchestrator{
		cfg:      cfg,
		session:  sess,
		store:    store,
		pool:     pool,
		mgr:      mgr,
		repo:     repo,
		bus:      bus,
		wake:     wake,
		log:      log.WithSession(sess.SessionID),
		stateDir: stateDir,
	}
	bus.Subscribe(event.TopicTaskCompleted, func(event.Event) { wake.Trigger("task_completed") })
	return o
}

// Run executes the cycle loop to completion and returns the final
// result record. Persistence and session status mutation happen at
// every cycle boundary, so a crash mid-cycle is recoverable by Resume.
func (o *Orchestrator) Run(ctx context.Context, goal string) Result {
	o.session.Goal = goal
	started := time.Now()

	for !o.session.BudgetExhausted() && o.session.Status == session.StatusRunning {
		if err := o.runCycle(ctx); err != nil {
			o.log.Error("cycle failed", "cycle", o.session.CurrentCycle, "error", err)
			o.session.Finish(session.StatusAborted, "fatal error: "+err.Error(), time.Now())
			break
		}
		if o.session.Status != session.StatusRunning {
			break
		}
	}

	if o.session.Status == session.StatusRunning {
		// Loop exited by cycle exhaustion rather than a decision.
		o.session.Finish(session.StatusAborted, "max cycles reached", time.Now())
	}

	o.commitFinal()
	_ = o.store.Save(o.stateDir)
	_ = session.Save(o.stateDir, o.session)

	return o.buildResult(started)
}

// runCycle runs exactly one Planner -> Worker stage -> optional wakeup
// replan -> Judge pass, per spec.md §4.9's pseudocode.
func (o *Orchestrator) runCycle(ctx context.Context) error {
	cycleCtx, cancel := context.WithTimeout(ctx, o.cfg.CycleTimeout)
	defer cancel()

	if reloaded, err := session.Load(o.stateDir); err == nil {
		o.session.Status = reloaded.Status
		o.session.PauseReason = reloaded.PauseReason
	}
	if o.session.Status != session.StatusRunning {
		return nil
	}

	if released := o.store.ReleaseStuck(); released > 0 {
		o.log.Warn("released stuck in-progress tasks", "count", released)
	}

	if o.allAgentsUnavailable() {
		o.session.Pause(session.StatusPausedNoAgents, "every configured agent kind is paused or on cooldown", time.Now())
		_ = o.store.Save(o.stateDir)
		return session.Save(o.stateDir, o.session)
	}

	cycle := o.session.CurrentCycle
	o.bus.Publish(event.NewCycleStartedEvent(cycle))

	if plan, err := planner.Run(cycleCtx, o.mgr, o.session.Goal, cycle, o.cfg.MaxCycles, boardSnapshots(o.store)); err != nil {
		o.log.Warn("planner run produced no usable plan", "cycle", cycle, "error", err)
	} else {
		o.addPlannedTasks(plan.Tasks, "planner")
		o.runSubPlanners(cycleCtx, plan, cycle)
	}

	o.runWorkerStage(cycleCtx)

	if sig, ok := o.wake.Consume(); ok {
		o.log.Info("mid-cycle wakeup triggered", "cycle", cycle, "reason", sig.Reason, "count", sig.Count)
		o.bus.Publish(event.NewPlannerWakeupEvent(cycle, sig.Count, sig.Reason))
		additional, err := planner.Run(cycleCtx, o.mgr, o.session.Goal, cycle, o.cfg.MaxCycles, boardSnapshots(o.store))
		if err == nil && additional != nil && len(additional.Tasks) > 0 {
			o.addPlannedTasks(additional.Tasks, "planner")
			o.runSubPlanners(cycleCtx, additional, cycle)
			o.runWorkerStage(cycleCtx)
		}
	}

	counts := o.store.Counts()
	now := time.Now()
	o.session.UpdateStats(counts.Total, counts.Completed, counts.Failed, counts.Pending, now)
	o.session.UpdateCheckpoint(o.session.Checkpoint.LastCompletedTask, pendingIDs(o.store), inProgressIDs(o.store), now)

	verdict := judge.Run(cycleCtx, o.mgr, o.session.Goal, cycle, o.cfg.MaxCycles, counts)
	o.bus.Publish(event.NewCycleFinishedEvent(cycle, string(verdict.Decision)))

	o.session.AdvanceCycle(now)

	switch verdict.Decision {
	case judge.DecisionComplete:
		o.session.Finish(session.StatusCompleted, verdict.Reasoning, time.Now())
	case judge.DecisionAbort:
		reason := verdict.Reasoning
		if reason == "" {
			reason = "judge aborted the session"
		}
		o.session.Finish(session.StatusAborted, reason, time.Now())
	}

	if err := o.store.Save(o.stateDir); err != nil {
		o.log.Warn("failed to persist task store", "error", err)
	}
	return session.Save(o.stateDir, o.session)
}

// allAgentsUnavailable reports whether fewer than cfg.MinAvailableAgents
// tracked agent kinds are available or busy. At the default
// threshold of 1, this is exactly "every tracked kind unavailable"; a
// higher threshold pauses the session earlier, before the pool is fully
// exhausted, rather than spinning through empty cycles until its budget
// runs out.
func (o *Orchestrator) allAgentsUnavailable() bool {
	if o.pool == nil {
		return false
	}
	min := o.cfg.MinAvailableAgents
	if min <= 0 {
		min = 1
	}
	available := 0
	for _, st := range o.pool.States() {
		if st.Status == agentpool.StatusAvailable || st.Status == agentpool.StatusBusy {
			available++
		}
	}
	return available < min
}

func (o *Orchestrator) commitFinal() {
	if o.repo == nil {
		return
	}
	dirty, err := o.repo.HasUncommittedChanges()
	if err != nil || !dirty {
		return
	}
	if err := o.repo.CommitAll(fmt.Sprintf("Session %s: final checkpoint", o.session.SessionID)); err != nil {
		o.log.Warn("failed to commit final changes", "error", err)
	}
}

// runSubPlanners fans out one sub-planner per area the Planner named in
// plan.SpawnSubPlanners and merges their proposed tasks into the store.
// A plan with no spawn_sub_planners entries is a no-op.
func (o *Orchestrator) runSubPlanners(ctx context.Context, plan *planner.Plan, cycle int) {
	if len(plan.SpawnSubPlanners) == 0 {
		return
	}
	areas := planner.BuildSubPlannerAreas(o.session.Goal, cycle, o.cfg.MaxCycles, plan.SpawnSubPlanners)
	o.log.Info("planner requested sub-planners", "cycle", cycle, "count", len(areas))
	tasks := planner.RunSubPlanners(ctx, o.mgr, areas)
	o.addPlannedTasks(tasks, "sub-planner")
}

// addPlannedTasks converts the Planner Runner's proposed tasks into
// Task Store entries. A PlannedTask carries no attempt budget of its
// own, so every task gets the store's default max_attempts.
func (o *Orchestrator) addPlannedTasks(proposed []planner.PlannedTask, createdBy string) {
	for _, p := range proposed {
		if p.Title == "" || p.Description == "" {
			o.log.Warn("skipping planned task with empty title or description", "created_by", createdBy)
			continue
		}
		t := task.CreateTask(p.Title, p.Description, createdBy, p.Files, 0, p.NeedsWebSearch)
		if err := o.store.Add(t); err != nil {
			o.log.Warn("failed to add planned task", "title", p.Title, "error", err)
		}
	}
}

// boardSnapshots summarizes every task regardless of status, so the
// Planner Runner can see completed and in-flight work and avoid
// duplicating it.
func boardSnapshots(store *task.Store) []task.Snapshot {
	var out []task.Snapshot
	for _, t := range store.All() {
		out = append(out, task.Snapshot{ID: t.ID, Title: t.Title, Status: t.Status})
	}
	return out
}

func pendingIDs(store *task.Store) []string {
	var ids []string
	for _, s := range store.Snapshots(task.StatusPending) {
		ids = append(ids, s.ID)
	}
	return ids
}

func inProgressIDs(store *task.Store) []string {
	var ids []string
	for _, s := range store.Snapshots(task.StatusInProgress) {
		ids = append(ids, s.ID)
	}
	return ids
}
