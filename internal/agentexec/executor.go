package agentexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
)

// extractFunc parses a subprocess's raw stdout into response text and a
// completion status. Each Kind has exactly one.
type extractFunc func(raw []byte) (text string, status completionStatus)

var extractors = map[Kind]extractFunc{
	KindClaude: ExtractClaude,
	KindCodex:  ExtractCodex,
	KindGemini: ExtractGemini,
}

// Executor runs one agent kind's CLI as a subprocess.
type Executor struct {
	Kind        Kind
	Command     string
	Args        []string
	Dir         string // working directory the subprocess runs in; the project path
	CallTimeout time.Duration
	DebugDir    string // if non-empty, prompt/raw/response are captured under DebugDir/prompts/
}

// New creates an Executor for kind, invoking command with args on every
// call. The prompt is always supplied over stdin, never interpolated
// into the command line or a shell string — the subprocess never sees
// untrusted input as part of its argv or an intermediate shell.
func New(kind Kind, command string, args []string) *Executor {
	return &Executor{
		Kind:        kind,
		Command:     command,
		Args:        args,
		CallTimeout: DefaultCallTimeout,
	}
}

// Run executes one call: prompt goes over stdin, the subprocess's
// combined output is parsed by the kind's extractor, and the call is
// killed if it exceeds e.CallTimeout (or ctx's own deadline, whichever
// is sooner).
func (e *Executor) Run(ctx context.Context, prompt string) (Result, error) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, e.Command, e.Args...)
	cmd.Stdin = bytes.NewBufferString(prompt)
	cmd.Dir = e.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if callCtx.Err() == context.DeadlineExceeded {
		e.captureDebug(prompt, out.Bytes(), nil)
		return Result{RawOutput: out.String(), ExitCode: exitCode, Duration: duration},
			engerrors.NewExecutorError("agent call exceeded its deadline", engerrors.ErrExecutorTimeout, exitCode).WithAgentKind(string(e.Kind))
	}

	extract := extractors[e.Kind]
	if extract == nil {
		extract = fallbackExtract
	}
	text, status := extract(out.Bytes())

	var completed bool
	switch status {
	case statusCompleted:
		completed = true
	case statusFailed:
		completed = false
	default:
		completed = exitCode == 0
	}

	result := Result{
		Output:    text,
		RawOutput: out.String(),
		ExitCode:  exitCode,
		Duration:  duration,
		Completed: completed,
	}

	e.captureDebug(prompt, out.Bytes(), []byte(text))

	if runErr != nil && exitCode != 0 {
		return result, engerrors.NewExecutorError("agent process exited non-zero", runErr, exitCode).WithAgentKind(string(e.Kind))
	}
	return result, nil
}

// captureDebug writes the prompt, raw output, and extracted response to
// DebugDir/prompts/ for offline inspection. Failures to write are
// swallowed — debug capture must never fail a call.
func (e *Executor) captureDebug(prompt string, raw, response []byte) {
	if e.DebugDir == "" {
		return
	}
	dir := filepath.Join(e.DebugDir, "prompts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}

	stamp := fmt.Sprintf("%s-%d", e.Kind, time.Now().UnixNano())
	_ = os.WriteFile(filepath.Join(dir, stamp+"-prompt.txt"), []byte(prompt), 0644)
	_ = os.WriteFile(filepath.Join(dir, stamp+"-raw.txt"), raw, 0644)
	if response != nil {
		_ = os.WriteFile(filepath.Join(dir, stamp+"-response.txt"), response, 0644)
	}
}
