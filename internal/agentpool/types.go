// Package agentpool tracks the health and availability of each detected
// agent kind (claude, codex, gemini, ...) and selects which kind a
// worker should use next.
package agentpool

import "time"

// Status is the current availability of one agent kind.
type Status string

const (
	// StatusAvailable means the kind is idle and may be selected.
	StatusAvailable Status = "available"

	// StatusBusy means the kind is currently executing a task. Multiple
	// workers may still share a kind; busy only reflects one in-flight
	// call accounted for by the caller's own concurrency limits.
	StatusBusy Status = "busy"

	// StatusCooldown means the kind was rate-limited and is not
	// selectable until AvailableAt.
	StatusCooldown Status = "cooldown"

	// StatusPaused means the kind was disabled by an operator or by
	// exceeding a consecutive-failure threshold, and requires manual
	// reactivation.
	StatusPaused Status = "paused"
)

// Outcome is the fixed decision Select returns.
type Outcome string

const (
	OutcomeSelected Outcome = "selected"
	OutcomeWait     Outcome = "wait"
	OutcomePause    Outcome = "pause"
)

// Decision is the result of a Select call.
type Decision struct {
	Outcome     Outcome
	Kind        string
	AvailableAt time.Time
	Reason      string
}

// AgentState is the health record kept for one agent kind.
type AgentState struct {
	Kind                string
	Status              Status
	AvailableAt         time.Time
	TotalRuns           int
	SuccessfulRuns      int
	TotalDuration       time.Duration
	ConsecutiveFailures int
}

// SuccessRate returns the fraction of completed runs that succeeded, or
// 1.0 for a kind that has never run (optimistic default, so a newly
// detected kind is immediately eligible rather than starved).
func (a AgentState) SuccessRate() float64 {
	if a.TotalRuns == 0 {
		return 1.0
	}
	return float64(a.SuccessfulRuns) / float64(a.TotalRuns)
}

// MeanDuration returns the mean duration of completed runs, or zero if
// none have completed yet.
func (a AgentState) MeanDuration() time.Duration {
	if a.TotalRuns == 0 {
		return 0
	}
	return a.TotalDuration / time.Duration(a.TotalRuns)
}

// HealthScore is success_rate divided by at-least-one-second mean
// duration, so a fast reliable agent outranks a slow one with the same
// success rate, and a stalled mean-duration of zero never divides by
// zero.
func (a AgentState) HealthScore() float64 {
	mean := a.MeanDuration().Seconds()
	if mean < 1 {
		mean = 1
	}
	return a.SuccessRate() / mean
}
