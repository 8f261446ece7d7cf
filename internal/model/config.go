package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AIConfig holds settings for the LLM and embedding backends.
type AIConfig struct {
	// Provider selects the completion backend: "ollama" or "anthropic".
	Provider string `mapstructure:"provider" yaml:"provider"`

	// BaseURL is the backend root URL. Empty means the provider default.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	Model      string `mapstructure:"model" yaml:"model"`
	EmbedModel string `mapstructure:"embed_model" yaml:"embed_model"`

	// APIKey is only used by hosted providers.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// TimeoutSec bounds every single LLM call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	EmbeddingsEnabled bool    `mapstructure:"embeddings_enabled" yaml:"embeddings_enabled"`
}

// PollConfig controls the background polling cycles.
type PollConfig struct {
	// InboxSchedule and SentSchedule are cron specs, e.g. "@every 60s".
	InboxSchedule string `mapstructure:"inbox_schedule" yaml:"inbox_schedule"`
	SentSchedule  string `mapstructure:"sent_schedule" yaml:"sent_schedule"`

	// MaxConcurrency bounds how many accounts are polled at once.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	SentLookbackHours int `mapstructure:"sent_lookback_hours" yaml:"sent_lookback_hours"`
	SentLimit         int `mapstructure:"sent_limit" yaml:"sent_limit"`
}

// DispatchConfig holds settings for links embedded in stored messages.
type DispatchConfig struct {
	// LinkBaseURL prefixes the lazy attachment and inline-image URLs.
	LinkBaseURL string `mapstructure:"link_base_url" yaml:"link_base_url"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CredentialConfig controls how mailbox passwords are protected.
type CredentialConfig struct {
	// Key is the base64 master key. When empty and UseKeyring is set the
	// key is read from the OS keyring.
	Key        string `mapstructure:"key" yaml:"key"`
	UseKeyring bool   `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Poll       PollConfig       `mapstructure:"poll" yaml:"poll"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailtriage")
}

// setDefaults registers every default on v so that missing keys and
// environment-only setups resolve to sensible values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(configDir(), "mailtriage.db"))

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "llama3.1")
	v.SetDefault("ai.embed_model", "nomic-embed-text")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout_sec", 60)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.requests_per_second", 2.0)
	v.SetDefault("ai.embeddings_enabled", true)

	v.SetDefault("poll.inbox_schedule", "@every 60s")
	v.SetDefault("poll.sent_schedule", "@every 5m")
	v.SetDefault("poll.max_concurrency", 4)
	v.SetDefault("poll.sent_lookback_hours", 24)
	v.SetDefault("poll.sent_limit", 10)

	v.SetDefault("dispatch.link_base_url", "/ui")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("credential.key", "")
	v.SetDefault("credential.use_keyring", false)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILTRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MAILTRIAGE_ override file values
// (MAILTRIAGE_AI_MODEL overrides ai.model). A missing file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Poll.MaxConcurrency < 1 {
		cfg.Poll.MaxConcurrency = 1
	}
	if cfg.Poll.SentLimit < 1 {
		cfg.Poll.SentLimit = 10
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("ai", cfg.AI)
	v.Set("poll", cfg.Poll)
	v.Set("dispatch", cfg.Dispatch)
	v.Set("log", cfg.Log)
	v.Set("credential", cfg.Credential)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
