package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "agents.max_consecutive_failures")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

func isValidLogLevel(level string) bool {
	for _, l := range ValidLogLevels() {
		if level == l {
			return true
		}
	}
	return false
}

// Validate checks the Config for invalid values and returns all
// validation errors found. Load returns them as ValidationErrors; Get,
// which the run and resume commands use, discards them and falls back
// to Default().
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateOrchestrator()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateOrchestrator() []ValidationError {
	var errors []ValidationError
	o := c.Orchestrator

	if o.MaxCycles < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.max_cycles",
			Value:   o.MaxCycles,
			Message: "must be at least 1",
		})
	}
	if o.MaxWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.max_workers",
			Value:   o.MaxWorkers,
			Message: "must be at least 1",
		})
	}
	if o.CallTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.call_timeout_ms",
			Value:   o.CallTimeoutMs,
			Message: "must be positive",
		})
	}
	if o.CycleTimeoutMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.cycle_timeout_ms",
			Value:   o.CycleTimeoutMs,
			Message: "must be positive",
		})
	}
	if o.WakeupThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.wakeup_threshold",
			Value:   o.WakeupThreshold,
			Message: "must be at least 1",
		})
	}
	if o.MinAvailableAgents < 1 {
		errors = append(errors, ValidationError{
			Field:   "orchestrator.min_available_agents",
			Value:   o.MinAvailableAgents,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError
	a := c.Agents

	if !IsValidPreset(a.Preset) {
		errors = append(errors, ValidationError{
			Field:   "agents.preset",
			Value:   a.Preset,
			Message: fmt.Sprintf("must be one of %v", ValidPresets()),
		})
	}

	for _, kind := range a.FallbackOrder {
		if _, ok := a.Kinds[kind]; !ok {
			errors = append(errors, ValidationError{
				Field:   "agents.fallback_order",
				Value:   kind,
				Message: "references an agent kind with no entry under agents.kinds",
			})
		}
	}

	for kind, kc := range a.Kinds {
		if kc.CooldownMinutes < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("agents.kinds.%s.cooldown_minutes", kind),
				Value:   kc.CooldownMinutes,
				Message: "must not be negative",
			})
		}
		if kc.Command == "" && kc.CommandEnvVar == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("agents.kinds.%s.command", kind),
				Value:   kc.Command,
				Message: "must name a binary, or command_env_var must name a fallback environment variable",
			})
		}
	}

	if a.MaxConsecutiveFailures < 1 {
		errors = append(errors, ValidationError{
			Field:   "agents.max_consecutive_failures",
			Value:   a.MaxConsecutiveFailures,
			Message: "must be at least 1",
		})
	}
	if a.CooldownMultiplier <= 0 {
		errors = append(errors, ValidationError{
			Field:   "agents.cooldown_multiplier",
			Value:   a.CooldownMultiplier,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Branch.Prefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !isValidLogLevel(c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}

	return errors
}
