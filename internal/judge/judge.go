// Package judge builds prompts for and parses decisions out of the
// Judge Runner: the agent call (or heuristic fallback) that decides
// whether a cycle loop continues, completes, or aborts.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/execmanager"
	"github.com/kieran-voss/loopdriver/internal/task"
)

// Decision is the fixed set of outcomes a judge call may return.
type Decision string

const (
	DecisionContinue Decision = "CONTINUE"
	DecisionComplete Decision = "COMPLETE"
	DecisionAbort    Decision = "ABORT"
)

// Verdict is the parsed result of one judge call.
type Verdict struct {
	Decision        Decision `json:"decision"`
	Reasoning       string   `json:"reasoning"`
	ProgressPercent int      `json:"progress_percent,omitempty"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

var decisionTagPattern = regexp.MustCompile(`(?s)<decision>\s*(.*?)\s*</decision>`)

// ParseVerdict extracts a Verdict from raw judge output: first an
// explicit <decision>...</decision> JSON block, falling back to
// scanning the raw text for one of the three fixed decision keywords.
func ParseVerdict(output string) (*Verdict, error) {
	if m := decisionTagPattern.FindStringSubmatch(output); len(m) == 2 {
		var v Verdict
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &v); err == nil && isValidDecision(v.Decision) {
			return &v, nil
		}
	}

	upper := strings.ToUpper(output)
	for _, d := range []Decision{DecisionComplete, DecisionAbort, DecisionContinue} {
		if strings.Contains(upper, string(d)) {
			return &Verdict{Decision: d, Reasoning: "keyword match in unstructured output"}, nil
		}
	}

	return nil, fmt.Errorf("parse judge verdict: %w", engerrors.ErrJudgeIndecisive)
}

func isValidDecision(d Decision) bool {
	switch d {
	case DecisionContinue, DecisionComplete, DecisionAbort:
		return true
	default:
		return false
	}
}

// BuildPrompt renders the judging prompt: the goal, the cycle
// counter/budget, and the current task board's outcome counts.
func BuildPrompt(goal string, cycle, maxCycles int, counts task.CountsByStatus) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Cycle %d of %d complete.\n\n", cycle, maxCycles)
	fmt.Fprintf(&b, "Tasks: %d total, %d pending, %d in progress, %d completed, %d failed.\n\n",
		counts.Total, counts.Pending, counts.InProgress, counts.Completed, counts.Failed)
	b.WriteString("Respond with a <decision>...</decision> block containing a JSON object with ")
	b.WriteString(`"decision" (one of CONTINUE, COMPLETE, ABORT), "reasoning", optional `)
	b.WriteString(`"progress_percent" (0-100), optional "issues" (array of strings), and optional `)
	b.WriteString(`"recommendations" (array of strings).`)
	return b.String()
}

// Heuristic computes the fixed fallback decision used when no judge
// agent is available or its output could not be parsed: cycle
// exhaustion aborts; an all-terminal board with at least one completed
// task and zero failed tasks completes; a failure rate over half the
// board aborts; otherwise the loop continues.
func Heuristic(cycle, maxCycles int, counts task.CountsByStatus) Verdict {
	if cycle >= maxCycles {
		return Verdict{Decision: DecisionAbort, Reasoning: "cycle budget exhausted"}
	}

	allTerminal := counts.Pending == 0 && counts.InProgress == 0
	if allTerminal && counts.Completed > 0 && counts.Failed == 0 {
		return Verdict{Decision: DecisionComplete, Reasoning: "all tasks terminal with no failures"}
	}

	if counts.Total > 0 && float64(counts.Failed)/float64(counts.Total) > 0.5 {
		return Verdict{Decision: DecisionAbort, Reasoning: "more than half of all tasks failed"}
	}

	return Verdict{Decision: DecisionContinue, Reasoning: "work remains"}
}

// Run executes one judge call. If the agent call fails or its output
// cannot be parsed into a verdict, it falls back to Heuristic rather
// than leaving the cycle loop without a decision.
func Run(ctx context.Context, mgr *execmanager.Manager, goal string, cycle, maxCycles int, counts task.CountsByStatus) Verdict {
	prompt := BuildPrompt(goal, cycle, maxCycles, counts)
	result, err := mgr.ExecuteRaw(ctx, "judge", prompt)
	if err != nil {
		return Heuristic(cycle, maxCycles, counts)
	}

	verdict, err := ParseVerdict(result.Output)
	if err != nil {
		return Heuristic(cycle, maxCycles, counts)
	}
	return *verdict
}
