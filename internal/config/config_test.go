// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration does not validate: %v", err)
	}
	if cfg.Sync.ChunkSize != 1<<20 {
		t.Errorf("default chunk size = %d, want 1MiB", cfg.Sync.ChunkSize)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirrorwell.yaml")
	content := []byte(`
server:
  port: 9000
registry:
  path: /tmp/devices.json
sync:
  chunk_size: 65536
  probe_timeout: 3s
  auto_sync: true
  auto_sync_interval: 30m
logging:
  level: debug
  format: console
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom() error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Registry.Path != "/tmp/devices.json" {
		t.Errorf("registry.path = %q", cfg.Registry.Path)
	}
	if cfg.Sync.ChunkSize != 65536 {
		t.Errorf("sync.chunk_size = %d, want 65536", cfg.Sync.ChunkSize)
	}
	if cfg.Sync.ProbeTimeout != 3*time.Second {
		t.Errorf("sync.probe_timeout = %v, want 3s", cfg.Sync.ProbeTimeout)
	}
	if cfg.Sync.AutoSyncInterval != 30*time.Minute {
		t.Errorf("sync.auto_sync_interval = %v, want 30m", cfg.Sync.AutoSyncInterval)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	// Untouched sections keep defaults.
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("sync.max_retries = %d, want default 5", cfg.Sync.MaxRetries)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MIRRORWELL_SERVER_PORT", "9100")
	t.Setenv("MIRRORWELL_SYNC_PROBE_TIMEOUT", "5s")
	t.Setenv("MIRRORWELL_AGENT_MEDIA_ROOT", "/srv/media")
	t.Setenv("MIRRORWELL_AGENT_ENABLED", "true")
	t.Setenv("MIRRORWELL_AGENT_PORT", "9101")

	cfg, err := loadFrom("")
	if err != nil {
		t.Fatalf("loadFrom() error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100 from env", cfg.Server.Port)
	}
	if cfg.Sync.ProbeTimeout != 5*time.Second {
		t.Errorf("sync.probe_timeout = %v, want 5s from env", cfg.Sync.ProbeTimeout)
	}
	if !cfg.Agent.Enabled || cfg.Agent.MediaRoot != "/srv/media" {
		t.Errorf("agent = %+v", cfg.Agent)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MIRRORWELL_SERVER_PORT", "server.port"},
		{"MIRRORWELL_SYNC_CHUNK_SIZE", "sync.chunk_size"},
		{"MIRRORWELL_AGENT_MEDIA_ROOT", "agent.media_root"},
		{"MIRRORWELL_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCORSOriginsFromEnvCommaList(t *testing.T) {
	t.Setenv("MIRRORWELL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := loadFrom("")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero server port", func(c *Config) { c.Server.Port = 0 }},
		{"agent without media root", func(c *Config) { c.Agent.Enabled = true; c.Agent.MediaRoot = "" }},
		{"empty registry path", func(c *Config) { c.Registry.Path = "" }},
		{"zero chunk size", func(c *Config) { c.Sync.ChunkSize = 0 }},
		{"negative probe timeout", func(c *Config) { c.Sync.ProbeTimeout = -time.Second }},
		{"auto sync without interval", func(c *Config) { c.Sync.AutoSync = true; c.Sync.AutoSyncInterval = 0 }},
		{"bogus log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bogus log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}
