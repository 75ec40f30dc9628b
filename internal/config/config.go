// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package config provides layered configuration loading for Mirrorwell
// using Koanf v2: built-in defaults, an optional YAML file, and
// MIRRORWELL_-prefixed environment variables, in ascending precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the mirrorwell daemon.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Agent    AgentConfig    `koanf:"agent"`
	Registry RegistryConfig `koanf:"registry"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the engine's admin HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// AgentConfig configures the optional device agent: the HTTP server that
// exposes this host's media root to other Mirrorwell instances.
type AgentConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Name            string        `koanf:"name"`
	MediaRoot       string        `koanf:"media_root"`
	APIKey          string        `koanf:"api_key"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// RegistryConfig configures device registry persistence.
type RegistryConfig struct {
	// Path is the JSON registry file, rewritten in full on every
	// register/remove.
	Path string `koanf:"path"`
}

// SyncConfig tunes the synchronization engine.
type SyncConfig struct {
	// ChunkSize bounds memory during digesting and transfers.
	ChunkSize int `koanf:"chunk_size"`

	// ProbeTimeout bounds the device connectivity probe. Transfers rely on
	// the transport's own timeout behavior.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	// RequestTimeout applies to catalog listing and control requests.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// AutoSync enables the periodic loop that mirrors the first online NAS
	// device to every other online device.
	AutoSync         bool          `koanf:"auto_sync"`
	AutoSyncInterval time.Duration `koanf:"auto_sync_interval"`

	// Retry policy for rate-limited (HTTP 429) device requests.
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7842,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Agent: AgentConfig{
			Enabled:         false,
			Host:            "0.0.0.0",
			Port:            7843,
			Name:            "",
			MediaRoot:       "",
			APIKey:          "",
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Registry: RegistryConfig{
			Path: "/data/devices.json",
		},
		Sync: SyncConfig{
			ChunkSize:        1 << 20, // 1MiB blocks during digest and transfer
			ProbeTimeout:     10 * time.Second,
			RequestTimeout:   30 * time.Second,
			AutoSync:         false,
			AutoSyncInterval: time.Hour,
			MaxRetries:       5,
			RetryBaseDelay:   time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the loaded configuration for values the daemon cannot
// start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Agent.Enabled {
		if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
			return fmt.Errorf("agent.port %d out of range", c.Agent.Port)
		}
		if c.Agent.MediaRoot == "" {
			return fmt.Errorf("agent.media_root is required when the agent is enabled")
		}
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path must not be empty")
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("sync.chunk_size must be positive, got %d", c.Sync.ChunkSize)
	}
	if c.Sync.ProbeTimeout <= 0 {
		return fmt.Errorf("sync.probe_timeout must be positive")
	}
	if c.Sync.AutoSync && c.Sync.AutoSyncInterval <= 0 {
		return fmt.Errorf("sync.auto_sync_interval must be positive when auto_sync is enabled")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
