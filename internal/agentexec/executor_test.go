package agentexec

import (
	"context"
	"os"
	"testing"
	"time"
)

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func TestRun_CapturesStdinPromptAndParsesClaudeEnvelope(t *testing.T) {
	e := &Executor{
		Kind:        KindClaude,
		Command:     "sh",
		Args:        []string{"-c", `cat >/dev/null; printf '{"type":"result","subtype":"success","result":"ok","is_error":false}'`},
		CallTimeout: 5 * time.Second,
	}

	result, err := e.Run(context.Background(), "implement the feature")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output != "ok" || !result.Completed {
		t.Errorf("got %+v, want output=ok completed=true", result)
	}
}

func TestRun_NonZeroExitIsReturnedAsError(t *testing.T) {
	e := &Executor{
		Kind:        KindClaude,
		Command:     "sh",
		Args:        []string{"-c", "exit 7"},
		CallTimeout: 5 * time.Second,
	}

	result, err := e.Run(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	if result.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", result.ExitCode)
	}
}

func TestRun_DeadlineExceededReturnsTimeoutError(t *testing.T) {
	e := &Executor{
		Kind:        KindClaude,
		Command:     "sh",
		Args:        []string{"-c", "sleep 5"},
		CallTimeout: 50 * time.Millisecond,
	}

	_, err := e.Run(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestRun_SetsWorkingDirectoryToDir(t *testing.T) {
	dir := t.TempDir()
	e := &Executor{
		Kind:        KindClaude,
		Command:     "sh",
		Args:        []string{"-c", `printf '{"type":"result","subtype":"success","result":"'"$(pwd)"'","is_error":false}'`},
		Dir:         dir,
		CallTimeout: 5 * time.Second,
	}

	result, err := e.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output != dir {
		t.Errorf("got output %q, want the subprocess's pwd to equal Dir %q", result.Output, dir)
	}
}

func TestRun_WritesDebugCaptureFiles(t *testing.T) {
	dir := t.TempDir()
	e := &Executor{
		Kind:        KindCodex,
		Command:     "sh",
		Args:        []string{"-c", `cat >/dev/null; printf '{"type":"item.completed","item":{"type":"agent_message","text":"hi"}}\n{"type":"turn.completed"}\n'`},
		CallTimeout: 5 * time.Second,
		DebugDir:    dir,
	}

	if _, err := e.Run(context.Background(), "prompt text"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := readDirNames(dir + "/prompts")
	if err != nil {
		t.Fatalf("reading debug dir: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 debug files (prompt/raw/response), got %d: %v", len(entries), entries)
	}
}
