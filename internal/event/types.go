package event

import "time"

// Event is the interface that all events must implement. It provides a
// common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.completed", "planner.wakeup")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events. Embed this in concrete
// event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Topic name constants. Components should subscribe to these rather than
// hardcoding event-type strings.
const (
	TopicTaskCompleted    = "task.completed"
	TopicTaskFailed       = "task.failed"
	TopicPlannerWakeup    = "planner.wakeup"
	TopicAgentRateLimited = "agent.rate_limited"
	TopicCycleStarted     = "cycle.started"
	TopicCycleFinished    = "cycle.finished"
)

// TaskCompletedEvent is emitted when a worker marks a task completed.
type TaskCompletedEvent struct {
	baseEvent
	TaskID    string
	AgentKind string
	Cycle     int
	Duration  time.Duration
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(taskID, agentKind string, cycle int, duration time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent(TopicTaskCompleted),
		TaskID:    taskID,
		AgentKind: agentKind,
		Cycle:     cycle,
		Duration:  duration,
	}
}

// TaskFailedEvent is emitted when a task exhausts its retries or is
// otherwise abandoned.
type TaskFailedEvent struct {
	baseEvent
	TaskID    string
	AgentKind string
	Cycle     int
	Category  string
	Message   string
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(taskID, agentKind string, cycle int, category, message string) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent(TopicTaskFailed),
		TaskID:    taskID,
		AgentKind: agentKind,
		Cycle:     cycle,
		Category:  category,
		Message:   message,
	}
}

// PlannerWakeupEvent is emitted when the wakeup controller's threshold
// fires and a mid-cycle replan should occur before the next Judge pass.
type PlannerWakeupEvent struct {
	baseEvent
	Cycle        int
	TriggerCount int
	Reason       string
}

// NewPlannerWakeupEvent creates a PlannerWakeupEvent.
func NewPlannerWakeupEvent(cycle, triggerCount int, reason string) PlannerWakeupEvent {
	return PlannerWakeupEvent{
		baseEvent:    newBaseEvent(TopicPlannerWakeup),
		Cycle:        cycle,
		TriggerCount: triggerCount,
		Reason:       reason,
	}
}

// AgentRateLimitedEvent is emitted when the agent pool marks a kind
// rate-limited and schedules its cooldown.
type AgentRateLimitedEvent struct {
	baseEvent
	AgentKind     string
	CooldownUntil time.Time
}

// NewAgentRateLimitedEvent creates an AgentRateLimitedEvent.
func NewAgentRateLimitedEvent(agentKind string, cooldownUntil time.Time) AgentRateLimitedEvent {
	return AgentRateLimitedEvent{
		baseEvent:     newBaseEvent(TopicAgentRateLimited),
		AgentKind:     agentKind,
		CooldownUntil: cooldownUntil,
	}
}

// CycleStartedEvent is emitted at the top of each Planner/Worker/Judge
// cycle, before the Planner Runner is invoked.
type CycleStartedEvent struct {
	baseEvent
	Cycle int
}

// NewCycleStartedEvent creates a CycleStartedEvent.
func NewCycleStartedEvent(cycle int) CycleStartedEvent {
	return CycleStartedEvent{
		baseEvent: newBaseEvent(TopicCycleStarted),
		Cycle:     cycle,
	}
}

// CycleFinishedEvent is emitted once the Judge Runner has returned a
// decision for the cycle.
type CycleFinishedEvent struct {
	baseEvent
	Cycle    int
	Decision string
}

// NewCycleFinishedEvent creates a CycleFinishedEvent.
func NewCycleFinishedEvent(cycle int, decision string) CycleFinishedEvent {
	return CycleFinishedEvent{
		baseEvent: newBaseEvent(TopicCycleFinished),
		Cycle:     cycle,
		Decision:  decision,
	}
}
