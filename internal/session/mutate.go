package session

import "time"

// Pause transitions the session to a paused status with a reason,
// leaving current_cycle untouched so a later Resume continues from
// where it left off.
func (s *Session) Pause(status Status, reason string, now time.Time) {
	s.Status = status
	s.PauseReason = reason
	s.UpdatedAt = now
}

// Resume clears any pause reason and returns the session to running,
// without touching current_cycle — resuming never recreates session
// state, it only continues the existing cycle loop.
func (s *Session) Resume(now time.Time) {
	s.Status = StatusRunning
	s.PauseReason = ""
	s.UpdatedAt = now
}

// Finish transitions the session to a terminal status.
func (s *Session) Finish(status Status, reason string, now time.Time) {
	s.Status = status
	s.PauseReason = reason
	s.UpdatedAt = now
}

// AdvanceCycle increments current_cycle and stamps a fresh checkpoint
// start time for the next cycle.
func (s *Session) AdvanceCycle(now time.Time) {
	s.CurrentCycle++
	s.Checkpoint.CycleStartedAt = now
	s.UpdatedAt = now
}

// UpdateCheckpoint records the task IDs pending and in progress at a
// cycle boundary, and the most recently completed task.
func (s *Session) UpdateCheckpoint(lastCompleted string, pending, inProgress []string, now time.Time) {
	if lastCompleted != "" {
		s.Checkpoint.LastCompletedTask = lastCompleted
	}
	s.Checkpoint.PendingTasks = pending
	s.Checkpoint.InProgressTasks = inProgress
	s.UpdatedAt = now
}

// UpdateStats refreshes the aggregate task counts reported in the Judge
// prompt and the final result record.
func (s *Session) UpdateStats(created, completed, failed, pending int, now time.Time) {
	s.Stats = Stats{
		TasksCreated:   created,
		TasksCompleted: completed,
		TasksFailed:    failed,
		TasksPending:   pending,
	}
	s.UpdatedAt = now
}

// BudgetExhausted reports whether current_cycle has reached max_cycles.
func (s *Session) BudgetExhausted() bool {
	return s.CurrentCycle >= s.MaxCycles
}
