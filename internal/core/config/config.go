// Package config provides configuration management for the rulekeeper
// services.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the rulekeeper binary.
type Config struct {
	DatabaseURL string
	CacheTTL    time.Duration
	LogLevel    string
	LogFormat   string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL: "sqlite://rulekeeper.db",
		CacheTTL:    5 * time.Minute,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %v", cfg.CacheTTL)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
