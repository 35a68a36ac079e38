// Package config loads server configuration with the priority
// defaults → config file → environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Config holds the runtime settings of the server.
type Config struct {
	// Configuration is the preferred build configuration used when a
	// request does not name one.
	Configuration string `mapstructure:"configuration"`
	// PageSize is the number of items per result page.
	PageSize int `mapstructure:"page_size"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Configuration: "Debug",
		PageSize:      20,
		LogLevel:      "info",
	}
}

// Load reads configuration from an optional file path and DOTNET_META_*
// environment variables. An explicitly named file must exist; the default
// search path may come up empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		if !fileExists(path) {
			return nil, fmt.Errorf("config: file not found: %s", path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dotnet-meta")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DOTNET_META")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defaults := Default()
	v.SetDefault("configuration", defaults.Configuration)
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func Validate(cfg *Config) error {
	if cfg.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive, got %d", cfg.PageSize)
	}
	if cfg.Configuration == "" {
		return fmt.Errorf("config: configuration must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", cfg.LogLevel)
	}
	return nil
}
