// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"mirrorwell.yaml",
	"mirrorwell.yml",
	"/etc/mirrorwell/config.yaml",
	"/etc/mirrorwell/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "MIRRORWELL_CONFIG"

// envPrefix is stripped from environment variables before mapping them onto
// config paths: MIRRORWELL_SYNC_CHUNK_SIZE -> sync.chunk_size.
const envPrefix = "MIRRORWELL_"

// Load builds the configuration from layered sources:
//  1. Built-in defaults (structs provider)
//  2. Optional YAML config file
//  3. MIRRORWELL_-prefixed environment variables (highest priority)
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// loadFrom is the file-path-injectable core of Load, used by tests.
func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps an environment variable name (prefix already stripped by
// the provider) onto a koanf path. The first underscore separates the
// section; the remainder keeps its underscores:
//
//	SERVER_PORT          -> server.port
//	SYNC_CHUNK_SIZE      -> sync.chunk_size
//	AGENT_MEDIA_ROOT     -> agent.media_root
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + rest
}

// sliceConfigPaths are the paths parsed as comma-separated lists when they
// arrive as plain strings from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env strings into slices for the
// known slice-valued paths. YAML-sourced values are already slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
