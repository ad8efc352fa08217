package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kieran-voss/loopdriver/internal/config"
	"github.com/kieran-voss/loopdriver/internal/orchestrator"
	"github.com/kieran-voss/loopdriver/internal/vcs"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Start a new session against a goal",
	Long: `Start a new session: branch off the current HEAD, then drive the
Planner/Worker/Judge cycle loop until the goal is judged complete, the
session is aborted, or the cycle budget is exhausted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := args[0]

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg := config.Get()
	stateDir := cfg.Paths.ResolveStateDir(cwd)

	repo := vcs.New(cwd)
	sess, err := orchestrator.StartSession(cwd, stateDir, goal, cfg.Orchestrator.MaxCycles, repo)
	if err != nil {
		return fmt.Errorf("%s", fatalErrorMessage("failed to start session", err))
	}

	eng, err := buildEngine(cfg, sess, cwd, stateDir)
	if err != nil {
		return fmt.Errorf("%s", fatalErrorMessage("failed to initialize engine", err))
	}

	result := eng.Run(context.Background(), goal)
	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, result orchestrator.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: %s\n", result.SessionID, result.Message)
	fmt.Fprintf(cmd.OutOrStdout(), "cycles: %d  tasks: %d created, %d completed, %d failed  duration: %s\n",
		result.TotalCycles, result.TasksCreated, result.TasksCompleted, result.TasksFailed, result.Duration)
}
