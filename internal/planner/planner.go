// Package planner builds prompts for and parses plans out of the
// Planner Runner: the agent call that turns a goal and the current task
// board into a fresh batch of pending tasks.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kieran-voss/loopdriver/internal/engerrors"
	"github.com/kieran-voss/loopdriver/internal/execmanager"
	"github.com/kieran-voss/loopdriver/internal/task"
)

// MaxTasksPerPlan caps how many tasks a single planning call may
// produce, regardless of how many the agent proposes.
const MaxTasksPerPlan = 10

// MaxSubPlanners caps how many area-restricted sub-planners a single
// replan may fan out to.
const MaxSubPlanners = 5

// MaxTasksPerSubPlanner caps how many tasks a single sub-planner's
// output may contribute.
const MaxTasksPerSubPlanner = 5

// PlannedTask is one task the Planner proposes. It is converted into a
// task.Task by the caller once accepted.
type PlannedTask struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SuccessCriteria string   `json:"success_criteria,omitempty"`
	Priority        int      `json:"priority,omitempty"`
	Files           []string `json:"files,omitempty"`
	NeedsWebSearch  bool     `json:"needs_web_search"`
}

// SubPlannerSpec is one area the Planner asks to be replanned by a
// restricted sub-planner, as named in the plan's spawn_sub_planners
// array.
type SubPlannerSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files,omitempty"`
}

// Plan is the parsed output of one planning call.
type Plan struct {
	Analysis         string           `json:"analysis,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Tasks            []PlannedTask    `json:"tasks"`
	SpawnSubPlanners []SubPlannerSpec `json:"spawn_sub_planners,omitempty"`
}

var fencedJSONTaggedPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
var fencedAnyPattern = regexp.MustCompile("(?s)```(?:\\w*)?\\s*(.*?)\\s*```")

// ParsePlan extracts a Plan from raw agent output, trying four
// increasingly permissive strategies in order: a JSON object containing
// both "analysis" and "tasks" keys, a fenced ```json code block, any
// fenced code block, and finally treating the entire output as JSON.
func ParsePlan(output string) (*Plan, error) {
	candidates := []string{}

	if obj := firstAnalysisTasksObject(output); obj != "" {
		candidates = append(candidates, obj)
	}
	if m := fencedJSONTaggedPattern.FindStringSubmatch(output); len(m) == 2 {
		candidates = append(candidates, m[1])
	}
	if m := fencedAnyPattern.FindStringSubmatch(output); len(m) == 2 {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, output)

	var lastErr error
	for _, c := range candidates {
		plan, err := decodePlan(c)
		if err == nil {
			return plan, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = engerrors.ErrPlanInvalid
	}
	return nil, fmt.Errorf("parse plan: %w", lastErr)
}

// firstAnalysisTasksObject scans s for balanced {...} objects and
// returns the first one whose text mentions both "analysis" and
// "tasks" as keys.
func firstAnalysisTasksObject(s string) string {
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := s[start : i+1]
				if strings.Contains(candidate, `"analysis"`) && strings.Contains(candidate, `"tasks"`) {
					return candidate
				}
				start = -1
			}
		}
	}
	return ""
}

func decodePlan(jsonStr string) (*Plan, error) {
	jsonStr = strings.TrimSpace(jsonStr)
	if jsonStr == "" {
		return nil, engerrors.ErrPlanInvalid
	}

	var plan Plan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, err
	}
	if len(plan.Tasks) == 0 {
		return nil, engerrors.ErrPlanEmpty
	}
	if len(plan.Tasks) > MaxTasksPerPlan {
		plan.Tasks = plan.Tasks[:MaxTasksPerPlan]
	}
	return &plan, nil
}

// BuildPrompt renders the planning prompt: the goal, the cycle
// budget, and a compact summary of the current task board so the
// planner doesn't duplicate completed or in-flight work.
func BuildPrompt(goal string, cycle, maxCycles int, board []task.Snapshot) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Cycle %d of %d.\n\n", cycle, maxCycles)

	if len(board) == 0 {
		b.WriteString("No tasks exist yet.\n")
	} else {
		b.WriteString("Current tasks:\n")
		for _, s := range board {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", s.ID, s.Title, s.Status)
		}
	}

	b.WriteString("\nRespond with a fenced ```json code block containing a JSON object with an ")
	b.WriteString("\"analysis\" string and ")
	b.WriteString(fmt.Sprintf("a \"tasks\" array (at most %d entries), each with title, description, ", MaxTasksPerPlan))
	b.WriteString("optional success_criteria, optional priority, optional files, and optional ")
	b.WriteString("needs_web_search. If this goal would benefit from ")
	b.WriteString(fmt.Sprintf("splitting work by area, include a \"spawn_sub_planners\" array (at most %d entries), ", MaxSubPlanners))
	b.WriteString("each with name, description, and optional files.")
	return b.String()
}

// Run executes one planning call against goal and the current board,
// returning the parsed, capped plan.
func Run(ctx context.Context, mgr *execmanager.Manager, goal string, cycle, maxCycles int, board []task.Snapshot) (*Plan, error) {
	prompt := BuildPrompt(goal, cycle, maxCycles, board)
	result, err := mgr.ExecuteRaw(ctx, "planner", prompt)
	if err != nil {
		return nil, err
	}
	return ParsePlan(result.Output)
}

// SubPlanArea is one area a sub-planner is restricted to.
type SubPlanArea struct {
	Name   string
	Prompt string
}

// BuildSubPlannerAreas renders one SubPlanArea per spec, restricting
// each sub-planner's prompt to its named area and file list.
func BuildSubPlannerAreas(goal string, cycle, maxCycles int, specs []SubPlannerSpec) []SubPlanArea {
	areas := make([]SubPlanArea, 0, len(specs))
	for _, spec := range specs {
		var b bytes.Buffer
		fmt.Fprintf(&b, "Goal: %s\n", goal)
		fmt.Fprintf(&b, "Cycle %d of %d.\n", cycle, maxCycles)
		fmt.Fprintf(&b, "You are a sub-planner restricted to the %q area: %s\n", spec.Name, spec.Description)
		if len(spec.Files) > 0 {
			b.WriteString("Relevant files:\n")
			for _, f := range spec.Files {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		b.WriteString(fmt.Sprintf("\nRespond with a fenced ```json code block containing a JSON object with "+
			"a \"tasks\" array (at most %d entries), each with title, description, optional files, "+
			"and optional needs_web_search. Propose tasks only within this area.", MaxTasksPerSubPlanner))
		areas = append(areas, SubPlanArea{Name: spec.Name, Prompt: b.String()})
	}
	return areas
}

// RunSubPlanners fans out one sub-planner per area (capped at
// MaxSubPlanners) concurrently, each producing at most
// MaxTasksPerSubPlanner tasks, and merges their output in area order. A
// sub-planner that errors contributes no tasks rather than failing the
// whole replan.
func RunSubPlanners(ctx context.Context, mgr *execmanager.Manager, areas []SubPlanArea) []PlannedTask {
	if len(areas) > MaxSubPlanners {
		areas = areas[:MaxSubPlanners]
	}

	results := make([][]PlannedTask, len(areas))
	var wg sync.WaitGroup
	for i, area := range areas {
		wg.Add(1)
		go func(i int, area SubPlanArea) {
			defer wg.Done()
			result, err := mgr.ExecuteRaw(ctx, "sub-planner:"+area.Name, area.Prompt)
			if err != nil {
				return
			}
			plan, err := ParsePlan(result.Output)
			if err != nil {
				return
			}
			tasks := plan.Tasks
			if len(tasks) > MaxTasksPerSubPlanner {
				tasks = tasks[:MaxTasksPerSubPlanner]
			}
			results[i] = tasks
		}(i, area)
	}
	wg.Wait()

	var merged []PlannedTask
	for _, tasks := range results {
		merged = append(merged, tasks...)
	}
	return merged
}
