package cmd

import (
	"strings"

	"github.com/kieran-voss/loopdriver/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "loopdriver",
	Short: "Autonomous multi-agent software-engineering loop",
	Long: `loopdriver drives a Planner/Worker/Judge cycle loop that delegates
coding work to external AI coding-agent subprocesses, tracking tasks,
committing each one as it lands, and replanning until the goal is
judged complete or the session exhausts its cycle budget.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/loopdriver/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/loopdriver")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LOOPDRIVER")
	// Replace dots with underscores for nested keys in env vars, e.g.
	// LOOPDRIVER_ORCHESTRATOR_MAX_CYCLES for orchestrator.max_cycles.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()

	// Pick up config edits made while a session is paused between
	// resumes, without requiring a process restart.
	viper.WatchConfig()
}
