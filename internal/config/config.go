// Package config loads and validates Quorum configuration.
// Configuration lives at ~/.quorum/config.yaml and can be overridden by
// QUORUM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Quorum orchestrator.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
}

// LLMConfig contains configuration for completion-service providers.
type LLMConfig struct {
	// DefaultProvider selects which provider handles completion calls.
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`

	// Providers maps provider name to its settings.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig holds per-provider completion settings.
type ProviderConfig struct {
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model          string  `mapstructure:"model" yaml:"model,omitempty"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
}

// StorageConfig contains configuration for the record store.
type StorageConfig struct {
	// DBPath is the SQLite database directory (a quorum.db file is created inside).
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// ServerConfig contains HTTP/WebSocket server configuration.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `mapstructure:"addr" yaml:"addr"`

	// APIKeys holds bcrypt hashes of accepted caller API keys.
	// An empty list disables auth (development mode).
	APIKeys []string `mapstructure:"api_keys" yaml:"api_keys,omitempty"`

	// ShutdownTimeoutSeconds is the graceful shutdown deadline.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`

	// File is an optional path for persistent logs.
	File string `mapstructure:"file" yaml:"file,omitempty"`

	// Colored enables ANSI colors on console output.
	Colored bool `mapstructure:"colored" yaml:"colored"`
}

// OrchestratorConfig bounds a deliberation turn. The completion service has
// no inherent per-call deadline, so these limits are what keeps a hung call
// or an oversized plan from stalling a turn.
type OrchestratorConfig struct {
	// AgentTimeoutSeconds caps each completion call within a turn.
	AgentTimeoutSeconds int `mapstructure:"agent_timeout_seconds" yaml:"agent_timeout_seconds"`

	// MaxAssignments hard-caps how many agents a plan may assign. Plans
	// beyond the cap are truncated in priority order.
	MaxAssignments int `mapstructure:"max_assignments" yaml:"max_assignments"`

	// HistoryTurns is how many prior turns feed the planning prompt.
	HistoryTurns int `mapstructure:"history_turns" yaml:"history_turns"`

	// ContextMessages is how many trailing history messages each agent sees.
	ContextMessages int `mapstructure:"context_messages" yaml:"context_messages"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".quorum")

	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint:       "http://127.0.0.1:11434",
					Model:          "llama3",
					MaxTokens:      4096,
					Temperature:    0.7,
					TimeoutSeconds: 120,
				},
				"openai": {
					Model:          "gpt-4o-mini",
					MaxTokens:      4096,
					Temperature:    0.7,
					TimeoutSeconds: 120,
				},
				"anthropic": {
					Model:          "claude-3-5-sonnet-20241022",
					MaxTokens:      4096,
					Temperature:    0.7,
					TimeoutSeconds: 120,
				},
			},
		},
		Storage: StorageConfig{
			DBPath: dataDir,
		},
		Server: ServerConfig{
			Addr:                   "127.0.0.1:8460",
			ShutdownTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    filepath.Join(dataDir, "logs", "quorum.log"),
			Colored: true,
		},
		Orchestrator: OrchestratorConfig{
			AgentTimeoutSeconds: 90,
			MaxAssignments:      6,
			HistoryTurns:        5,
			ContextMessages:     6,
		},
	}
}

// Load reads configuration from the default location (~/.quorum/config.yaml)
// and merges with environment variables. If no config file exists, it
// creates one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".quorum", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	// Configure Viper
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Enable environment variable overrides
	// Example: QUORUM_LLM_DEFAULT_PROVIDER
	v.SetEnvPrefix("QUORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in missing values so a sparse config file still works.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaults.LLM.DefaultProvider
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = defaults.LLM.Providers
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = defaults.Storage.DBPath
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = defaults.Server.ShutdownTimeoutSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Orchestrator.AgentTimeoutSeconds == 0 {
		c.Orchestrator.AgentTimeoutSeconds = defaults.Orchestrator.AgentTimeoutSeconds
	}
	if c.Orchestrator.MaxAssignments == 0 {
		c.Orchestrator.MaxAssignments = defaults.Orchestrator.MaxAssignments
	}
	if c.Orchestrator.HistoryTurns == 0 {
		c.Orchestrator.HistoryTurns = defaults.Orchestrator.HistoryTurns
	}
	if c.Orchestrator.ContextMessages == 0 {
		c.Orchestrator.ContextMessages = defaults.Orchestrator.ContextMessages
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("default provider %q has no provider configuration", c.LLM.DefaultProvider)
	}
	if c.Orchestrator.MaxAssignments < 1 {
		return fmt.Errorf("orchestrator.max_assignments must be at least 1")
	}
	if c.Orchestrator.AgentTimeoutSeconds < 1 {
		return fmt.Errorf("orchestrator.agent_timeout_seconds must be at least 1")
	}
	return nil
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// writeConfigFile marshals the config to YAML and writes it to disk.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// expandPath expands a leading tilde to the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
}
