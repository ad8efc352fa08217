package engerrors

import (
	"errors"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTaskError(t *testing.T) {
	err := NewTaskError("claim failed", ErrTaskNotClaimable).WithTaskID("t-1")

	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
	if !errors.Is(err, ErrTaskNotClaimable) {
		t.Error("expected errors.Is to see through to the wrapped sentinel")
	}
	if got := err.Error(); got == "" {
		t.Error("Error() should not be empty")
	}
}

func TestExecutorError_RetryableIsSettable(t *testing.T) {
	err := NewExecutorError("rate limited", ErrRateLimited, 1).
		WithAgentKind("claude").
		WithRetryable(true)

	if !IsRetryable(err) {
		t.Error("expected IsRetryable() to be true after WithRetryable(true)")
	}
	if err.AgentKind != "claude" {
		t.Errorf("AgentKind = %q, want %q", err.AgentKind, "claude")
	}
}

func TestIsRetryable_NonDomainError(t *testing.T) {
	if IsRetryable(errors.New("plain error")) {
		t.Error("a plain error should never be considered retryable")
	}
}

func TestAgentPoolError_Is(t *testing.T) {
	err := NewAgentPoolError("no claude instance", ErrNoAgentAvailable).WithAgentKind("claude")

	var target *AgentPoolError
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to match *AgentPoolError")
	}
	if target.AgentKind != "claude" {
		t.Errorf("AgentKind = %q, want %q", target.AgentKind, "claude")
	}
}

func TestVCSError_WithBranch(t *testing.T) {
	err := NewVCSError("rebase failed", ErrRebaseConflict).WithBranch("feature-x")
	if err.Branch != "feature-x" {
		t.Errorf("Branch = %q, want %q", err.Branch, "feature-x")
	}
	if !errors.Is(err, ErrRebaseConflict) {
		t.Error("expected errors.Is to unwrap to ErrRebaseConflict")
	}
}

func TestSeverityOf_DefaultsToError(t *testing.T) {
	if got := SeverityOf(errors.New("plain")); got != SeverityError {
		t.Errorf("SeverityOf(plain error) = %v, want %v", got, SeverityError)
	}
}
