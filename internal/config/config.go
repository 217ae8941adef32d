// Package config handles configuration loading and management for Relay.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Relay.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// AnthropicConfig holds language backend settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes API calls through AWS Bedrock instead of
	// the direct Anthropic API.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DatabaseConfig holds task store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty uses the XDG data path.
	Path string `mapstructure:"path"`
}

// DispatchConfig holds worker pool settings.
type DispatchConfig struct {
	Workers int `mapstructure:"workers"`
	// DebugLog is an optional file path for dispatch debug logging.
	DebugLog string `mapstructure:"debug_log"`
	// RetentionDays is how long finished tasks are kept.
	RetentionDays int `mapstructure:"retention_days"`
}

// ScheduleConfig holds the recurring system-task settings.
type ScheduleConfig struct {
	ArchiveEnabled   bool          `mapstructure:"archive_enabled"`
	ArchiveTime      string        `mapstructure:"archive_time"`
	ArchiveAfterDays int           `mapstructure:"archive_after_days"`
	SyncEnabled      bool          `mapstructure:"sync_enabled"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	MetadataEnabled  bool          `mapstructure:"metadata_enabled"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.relay.yaml in current directory or parent)
// 3. User config (~/.config/relay/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over the user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("database.path", "")

	v.SetDefault("dispatch.workers", 2)
	v.SetDefault("dispatch.debug_log", "")
	v.SetDefault("dispatch.retention_days", 30)

	v.SetDefault("schedule.archive_enabled", true)
	v.SetDefault("schedule.archive_time", "03:00")
	v.SetDefault("schedule.archive_after_days", 90)
	v.SetDefault("schedule.sync_enabled", true)
	v.SetDefault("schedule.sync_interval", "15m")
	v.SetDefault("schedule.cleanup_enabled", true)
	v.SetDefault("schedule.metadata_enabled", true)
}

// getUserConfigDir returns the XDG config directory for Relay.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "relay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relay")
	}
	return filepath.Join(home, ".config", "relay")
}

// findProjectConfig searches for .relay.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".relay.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			Workers:       2,
			RetentionDays: 30,
		},
		Schedule: ScheduleConfig{
			ArchiveEnabled:   true,
			ArchiveTime:      "03:00",
			ArchiveAfterDays: 90,
			SyncEnabled:      true,
			SyncInterval:     15 * time.Minute,
			CleanupEnabled:   true,
			MetadataEnabled:  true,
		},
	}
}
