package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kieran-voss/loopdriver/internal/config"
	"github.com/kieran-voss/loopdriver/internal/orchestrator"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused or interrupted session",
	Long: `Reload session state from the project's state directory and continue
the cycle loop from its last checkpoint.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg := config.Get()
	stateDir := cfg.Paths.ResolveStateDir(cwd)

	sess, err := orchestrator.ResumeSession(stateDir)
	if err != nil {
		return fmt.Errorf("%s", fatalErrorMessage("failed to resume session", err))
	}

	eng, err := buildEngine(cfg, sess, cwd, stateDir)
	if err != nil {
		return fmt.Errorf("%s", fatalErrorMessage("failed to initialize engine", err))
	}

	result := eng.Run(context.Background(), sess.Goal)
	printResult(cmd, result)
	return nil
}
