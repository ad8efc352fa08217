package cmd

import (
	"strings"
	"testing"

	"github.com/kieran-voss/loopdriver/internal/config"
	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/task"
)

func TestPresetFlags_LooksUpModelAndReasoningForPreset(t *testing.T) {
	kc := config.AgentKindConfig{
		Model:     map[string]string{"fast": "haiku", "max": "opus"},
		Reasoning: map[string]string{"max": "high"},
	}

	got := presetFlags(kc, "max")
	want := []string{"--model", "opus", "--reasoning-effort", "high"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestPresetFlags_NoEntryForPresetYieldsNoFlags(t *testing.T) {
	kc := config.AgentKindConfig{
		Model: map[string]string{"max": "opus"},
	}

	if got := presetFlags(kc, "default"); len(got) != 0 {
		t.Errorf("expected no flags for an unconfigured preset, got %v", got)
	}
}

func TestBuildWorkerPrompt_IncludesTitleDescriptionAndFiles(t *testing.T) {
	tk := task.CreateTask("fix the bug", "the parser mishandles trailing commas", "planner", []string{"parser.go", "parser_test.go"}, 0, false)

	got := buildWorkerPrompt(tk)

	for _, want := range []string{"fix the bug", "the parser mishandles trailing commas", "parser.go", "parser_test.go"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildWorkerPrompt_OmitsFilesSectionWhenEmpty(t *testing.T) {
	tk := task.CreateTask("fix the bug", "details", "planner", nil, 0, false)

	got := buildWorkerPrompt(tk)

	if strings.Contains(got, "Relevant files:") {
		t.Errorf("prompt should not include a files section with no files:\n%s", got)
	}
}

func TestFatalErrorMessage_DomainErrorRendersItsOwnMessage(t *testing.T) {
	err := engerrors.NewAgentPoolError("no configured agent kind was found on PATH", engerrors.ErrNoAgentAvailable)

	got := fatalErrorMessage("failed to initialize engine", err)

	if !strings.Contains(got, "no configured agent kind was found on PATH") {
		t.Errorf("got %q, want the domain error's own message", got)
	}
}

func TestFatalErrorMessage_PlainErrorIsWrappedWithAction(t *testing.T) {
	err := errorsNew("disk full")

	got := fatalErrorMessage("failed to start session", err)

	if !strings.Contains(got, "failed to start session") || !strings.Contains(got, "disk full") {
		t.Errorf("got %q, want it to contain both the action and the error", got)
	}
}

func errorsNew(msg string) error {
	return &plainError{msg}
}

type plainError struct{ msg string }

func (e *plainError) Error() string { return e.msg }
