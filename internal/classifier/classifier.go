// Package classifier implements the Error Classifier: a pure function
// from (subprocess output, exit code) to a fixed error taxonomy, plus
// the per-category recovery policy the Executor Manager and Task Store
// consult to decide between retry, reassignment, and failure.
package classifier

import (
	"strings"

	"github.com/kieran-voss/loopdriver/internal/task"
)

// matchRule is one entry in the ordered signal table. Rules are tried
// in order and the first match wins.
type matchRule struct {
	category task.ErrorCategory
	keywords []string
}

// rules is intentionally ordered: rate_limit and timeout are checked
// before the generic crash fallback so a rate-limited process that also
// exits non-zero is still classified as rate_limit, not crash.
var rules = []matchRule{
	{task.CategoryRateLimit, []string{"rate limit", "too many requests", "quota exceeded", "429", "ratelimit"}},
	{task.CategoryTimeout, []string{"timed out", "timeout"}},
	{task.CategoryPermission, []string{"permission denied", "access denied", "unauthorized"}},
	{task.CategoryNetwork, []string{"connection refused", "connection reset", "name resolution failed", "fetch failed"}},
	{task.CategoryGitConflict, []string{"conflict", "merge conflict", "cannot merge"}},
}

// timeoutExitCode is the conventional exit status of the `timeout(1)`
// wrapper and several agent CLIs when they hit their own deadline.
const timeoutExitCode = 124

// Classify maps raw subprocess output and its exit code onto the fixed
// error taxonomy. It is a pure function: the same (output, exitCode)
// always yields the same category.
func Classify(output string, exitCode int) task.ErrorCategory {
	lower := strings.ToLower(output)

	if matchesAny(lower, rules[0].keywords) {
		return task.CategoryRateLimit
	}
	if exitCode == timeoutExitCode || matchesAny(lower, rules[1].keywords) {
		return task.CategoryTimeout
	}
	if matchesAny(lower, rules[2].keywords) {
		return task.CategoryPermission
	}
	if matchesAny(lower, rules[3].keywords) {
		return task.CategoryNetwork
	}
	if matchesAny(lower, rules[4].keywords) {
		return task.CategoryGitConflict
	}
	if exitCode != 0 && !strings.Contains(lower, "error") {
		return task.CategoryCrash
	}
	return task.CategoryUnknown
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Policy is the fixed, per-category recovery policy. It must be
// reproduced exactly; values are configuration in spirit but the table
// shape itself is part of the classifier's contract.
type Policy struct {
	Retry         bool
	CooldownMins  float64
	MaxRetries    int
	AllowFailover bool
	Action        Action
}

// Action is the recovery action a policy row prescribes.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionReassign Action = "reassign"
	ActionFail     Action = "fail"
	ActionPause    Action = "pause"
)

// policies is the fixed per-category table from spec.md §4.3.
var policies = map[task.ErrorCategory]Policy{
	task.CategoryRateLimit:     {Retry: false, CooldownMins: 45, MaxRetries: 0, AllowFailover: true, Action: ActionReassign},
	task.CategoryTimeout:       {Retry: true, CooldownMins: 0, MaxRetries: 2, AllowFailover: true, Action: ActionRetry},
	task.CategoryCrash:         {Retry: true, CooldownMins: 1, MaxRetries: 3, AllowFailover: true, Action: ActionRetry},
	task.CategoryInvalidOutput: {Retry: true, CooldownMins: 0, MaxRetries: 2, AllowFailover: false, Action: ActionRetry},
	task.CategoryGitConflict:   {Retry: true, CooldownMins: 0, MaxRetries: 2, AllowFailover: false, Action: ActionRetry},
	task.CategoryPermission:    {Retry: false, CooldownMins: 0, MaxRetries: 0, AllowFailover: false, Action: ActionFail},
	task.CategoryNetwork:       {Retry: true, CooldownMins: 0.5, MaxRetries: 5, AllowFailover: false, Action: ActionRetry},
	task.CategoryUnknown:       {Retry: true, CooldownMins: 1, MaxRetries: 1, AllowFailover: true, Action: ActionRetry},
}

// PolicyFor returns the fixed recovery policy for category.
func PolicyFor(category task.ErrorCategory) Policy {
	return policies[category]
}

// maxReassignments bounds how many times a single task may be handed to
// a different agent kind, regardless of what the policy table allows.
const maxReassignments = 3

// ShouldRetry reports whether a task that failed with category should
// be retried, given its attempt count so far and its configured
// max_attempts.
func ShouldRetry(category task.ErrorCategory, attempts, maxAttempts int) bool {
	return PolicyFor(category).Retry && attempts < maxAttempts
}

// ShouldReassign reports whether a failed task should be handed to a
// different agent kind, given its category and the length of its
// agent_history so far. A task is never reassigned more than
// maxReassignments times.
func ShouldReassign(category task.ErrorCategory, agentHistoryLength int) bool {
	return PolicyFor(category).AllowFailover && agentHistoryLength < maxReassignments
}
