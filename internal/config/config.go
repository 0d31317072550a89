// Package config holds all presence engine configuration, loaded from a YAML
// file with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all presence configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Data directory: agent workspaces, history DB, logs
	DataDir string `yaml:"data_dir"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Memory tier limits
	Limits LimitsConfig `yaml:"limits"`

	// Evaluation loop policy
	Loop LoopConfig `yaml:"loop"`

	// Owner identity and message delimiters
	Identity IdentityConfig `yaml:"identity"`

	// Chat history store
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// LimitsConfig bounds the writable memory tiers and the intent window.
// Tier limits are in characters; callers truncate before prompt embedding,
// the store itself never truncates on write.
type LimitsConfig struct {
	GroupRuleMax     int `yaml:"group_rule_max"`
	SocialMemoryMax  int `yaml:"social_memory_max"`
	ReplyStrategyMax int `yaml:"reply_strategy_max"`
	SoulMax          int `yaml:"soul_max"`
	IntentWindowSize int `yaml:"intent_window_size"`
}

// LoopConfig configures the per-(agent,target) evaluation loop.
// When a tick sees no new history the interval doubles, capped at
// Interval * IdleMaxMultiplier; any new message resets it to Interval.
type LoopConfig struct {
	Interval          string `yaml:"interval"`
	IdleMaxMultiplier int    `yaml:"idle_max_multiplier"`
	MaxConcurrent     int    `yaml:"max_concurrent"`
}

// IdentityConfig names the owner and the delimiters that separate a
// message's identity segment from its body. Owner claims are only trusted
// inside the identity segment.
type IdentityConfig struct {
	OwnerQQ   string `yaml:"owner_qq"`
	OwnerName string `yaml:"owner_name"`

	NameLeft     string `yaml:"name_left"`
	NameRight    string `yaml:"name_right"`
	MessageLeft  string `yaml:"message_left"`
	MessageRight string `yaml:"message_right"`
}

// HistoryConfig configures the SQLite chat history store.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "presence",
		Version: "0.3.0",

		DataDir: defaultDataDir(),

		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "120s",
		},

		Limits: LimitsConfig{
			GroupRuleMax:     4000,
			SocialMemoryMax:  6000,
			ReplyStrategyMax: 2000,
			SoulMax:          8000,
			IntentWindowSize: 20,
		},

		Loop: LoopConfig{
			Interval:          "90s",
			IdleMaxMultiplier: 8,
			MaxConcurrent:     4,
		},

		Identity: IdentityConfig{
			NameLeft:     "⟦",
			NameRight:    "⟧",
			MessageLeft:  "«",
			MessageRight: "»",
		},

		History: HistoryConfig{
			DatabasePath: "history.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".presence-data"
	}
	return filepath.Join(home, ".presence")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults plus env overrides if no config file exists
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if dir := os.Getenv("PRESENCE_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if path := os.Getenv("PRESENCE_HISTORY_DB"); path != "" {
		c.History.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetLoopInterval returns the base evaluation interval as a duration.
func (c *Config) GetLoopInterval() time.Duration {
	d, err := time.ParseDuration(c.Loop.Interval)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// HistoryDBPath returns the absolute path of the history database.
func (c *Config) HistoryDBPath() string {
	if filepath.IsAbs(c.History.DatabasePath) {
		return c.History.DatabasePath
	}
	return filepath.Join(c.DataDir, c.History.DatabasePath)
}

// WorkspaceRoot returns the root directory holding per-agent workspaces.
func (c *Config) WorkspaceRoot() string {
	return filepath.Join(c.DataDir, "workspace")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY)")
	}
	if c.Limits.GroupRuleMax <= 0 || c.Limits.SocialMemoryMax <= 0 || c.Limits.ReplyStrategyMax <= 0 {
		return fmt.Errorf("memory tier limits must be positive")
	}
	if c.Limits.IntentWindowSize <= 0 {
		return fmt.Errorf("intent window size must be positive")
	}
	return nil
}
