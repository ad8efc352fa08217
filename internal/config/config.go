package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full configuration surface: orchestration bounds,
// per-kind agent settings, branch naming, state-directory location, and
// logging verbosity.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Agents       AgentsConfig       `mapstructure:"agents"`
	Branch       BranchConfig       `mapstructure:"branch"`
	Paths        PathsConfig        `mapstructure:"paths"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// OrchestratorConfig controls the cycle loop's pacing and bounds.
type OrchestratorConfig struct {
	// MaxCycles caps how many Planner/Worker/Judge cycles a session may
	// run before it is aborted for budget exhaustion (default: 20).
	MaxCycles int `mapstructure:"max_cycles"`
	// MaxWorkers is the number of concurrent worker loops in the Worker
	// stage (default: 3).
	MaxWorkers int `mapstructure:"max_workers"`
	// CallTimeoutMs bounds a single agent subprocess call (default: 300000).
	CallTimeoutMs int `mapstructure:"call_timeout_ms"`
	// CycleTimeoutMs bounds one full cycle (default: 600000).
	CycleTimeoutMs int `mapstructure:"cycle_timeout_ms"`
	// WakeupThreshold is how many qualifying events accumulate before a
	// mid-cycle replan is triggered (default: 3).
	WakeupThreshold int `mapstructure:"wakeup_threshold"`
	// MinAvailableAgents is the minimum number of healthy agent kinds
	// required to keep running; below it the session pauses with
	// paused_no_agents (default: 1).
	MinAvailableAgents int `mapstructure:"min_available_agents"`
}

// AgentsConfig controls which agent kinds are tried, in what order, and
// how their health is tracked.
type AgentsConfig struct {
	// FallbackOrder is the tie-break order the Agent Pool uses when
	// multiple kinds have equal health scores.
	FallbackOrder []string `mapstructure:"fallback_order"`
	// Preset selects one of three named model/reasoning presets — "fast",
	// "default", "max" — applied across every configured kind.
	Preset string `mapstructure:"preset"`
	// Kinds maps an agent kind name to its per-kind settings.
	Kinds map[string]AgentKindConfig `mapstructure:"kinds"`
	// MaxConsecutiveFailures pauses a kind once its run of consecutive
	// failures reaches this count (default: 5).
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	// CooldownMultiplier scales every kind's configured cooldown minutes
	// (default: 1.0).
	CooldownMultiplier float64 `mapstructure:"cooldown_multiplier"`
}

// AgentKindConfig holds one agent kind's invocation and health settings.
type AgentKindConfig struct {
	// Command is the CLI binary name invoked for this kind.
	Command string `mapstructure:"command"`
	// CommandEnvVar, if set, overrides Command with the value of this
	// environment variable when present.
	CommandEnvVar string `mapstructure:"command_env_var"`
	// Model maps preset name to the --model-equivalent flag value passed
	// to this kind's subprocess.
	Model map[string]string `mapstructure:"model"`
	// Reasoning maps preset name to the reasoning-effort flag value
	// passed to this kind's subprocess.
	Reasoning map[string]string `mapstructure:"reasoning"`
	// CooldownMinutes is how long this kind is marked rate_limited for
	// after a rate-limit classification, before CooldownMultiplier.
	CooldownMinutes int `mapstructure:"cooldown_minutes"`
}

// BranchConfig controls the session branch naming convention.
type BranchConfig struct {
	// Prefix is the branch name prefix (default: "loopdriver"). Validate
	// rejects a blank prefix, but StartSession does not read this field:
	// sessions always branch as loopdriver/<session_id>.
	Prefix string `mapstructure:"prefix"`
}

// PathsConfig controls where session state is stored.
type PathsConfig struct {
	// StateDir is the directory state.json, tasks.json, logs/, and
	// prompts/ live under. The agent pool's state is held in memory only;
	// no agents.json is written. If empty, defaults to
	// ".loopdriver" relative to the project directory. Supports ~ for
	// home directory expansion.
	StateDir string `mapstructure:"state_dir"`
}

// LoggingConfig controls the structured log the engine writes to
// logs/session.log.
type LoggingConfig struct {
	// Enabled controls whether logging is written at all (default: true).
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level logged: "debug", "info", "warn", "error"
	// (default: "info").
	Level string `mapstructure:"level"`
}

// ResolveStateDir returns the resolved state directory path. If
// StateDir is empty, it returns the default path relative to baseDir.
// If StateDir starts with ~, it expands to the user's home directory.
// If StateDir is a relative path, it is resolved relative to baseDir.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	if p.StateDir == "" {
		return filepath.Join(baseDir, ".loopdriver")
	}

	path := p.StateDir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// ResolveCommand returns the CLI binary to invoke for a kind's config:
// the command named by CommandEnvVar if that variable is set, else
// Command.
func (a *AgentKindConfig) ResolveCommand() string {
	if a.CommandEnvVar != "" {
		if v := os.Getenv(a.CommandEnvVar); v != "" {
			return v
		}
	}
	return a.Command
}

// Default returns a Config with sensible default values, matching the
// defaults spec.md §6 names.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxCycles:          20,
			MaxWorkers:         3,
			CallTimeoutMs:      300000,
			CycleTimeoutMs:     600000,
			WakeupThreshold:    3,
			MinAvailableAgents: 1,
		},
		Agents: AgentsConfig{
			FallbackOrder: []string{"claude", "codex", "gemini"},
			Preset:        "default",
			Kinds: map[string]AgentKindConfig{
				"claude": {
					Command:         "claude",
					CommandEnvVar:   "LOOPDRIVER_CLAUDE_COMMAND",
					Model:           map[string]string{},
					Reasoning:       map[string]string{},
					CooldownMinutes: 45,
				},
				"codex": {
					Command:         "codex",
					CommandEnvVar:   "LOOPDRIVER_CODEX_COMMAND",
					Model:           map[string]string{},
					Reasoning:       map[string]string{},
					CooldownMinutes: 30,
				},
				"gemini": {
					Command:         "gemini",
					CommandEnvVar:   "LOOPDRIVER_GEMINI_COMMAND",
					Model:           map[string]string{},
					Reasoning:       map[string]string{},
					CooldownMinutes: 30,
				},
			},
			MaxConsecutiveFailures: 5,
			CooldownMultiplier:     1.0,
		},
		Branch: BranchConfig{
			Prefix: "loopdriver",
		},
		Paths: PathsConfig{
			StateDir: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper so a partial config
// file only needs to name the fields it overrides.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("orchestrator.max_cycles", defaults.Orchestrator.MaxCycles)
	viper.SetDefault("orchestrator.max_workers", defaults.Orchestrator.MaxWorkers)
	viper.SetDefault("orchestrator.call_timeout_ms", defaults.Orchestrator.CallTimeoutMs)
	viper.SetDefault("orchestrator.cycle_timeout_ms", defaults.Orchestrator.CycleTimeoutMs)
	viper.SetDefault("orchestrator.wakeup_threshold", defaults.Orchestrator.WakeupThreshold)
	viper.SetDefault("orchestrator.min_available_agents", defaults.Orchestrator.MinAvailableAgents)

	viper.SetDefault("agents.fallback_order", defaults.Agents.FallbackOrder)
	viper.SetDefault("agents.preset", defaults.Agents.Preset)
	viper.SetDefault("agents.kinds", defaults.Agents.Kinds)
	viper.SetDefault("agents.max_consecutive_failures", defaults.Agents.MaxConsecutiveFailures)
	viper.SetDefault("agents.cooldown_multiplier", defaults.Agents.CooldownMultiplier)

	viper.SetDefault("branch.prefix", defaults.Branch.Prefix)

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if
// unmarshaling or validation fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loopdriver")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loopdriver"
	}
	return filepath.Join(home, ".config", "loopdriver")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidPresets returns the three named model/reasoning presets.
func ValidPresets() []string {
	return []string{"fast", "default", "max"}
}

// IsValidPreset reports whether preset is one of the three named presets.
func IsValidPreset(preset string) bool {
	for _, valid := range ValidPresets() {
		if preset == valid {
			return true
		}
	}
	return false
}
