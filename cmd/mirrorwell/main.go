// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package main is the entry point for the Mirrorwell daemon.
//
// Mirrorwell keeps media libraries synchronized across a fleet of devices:
// NAS boxes, workstations, mobile staging areas and S3-compatible cloud
// storage. Content identity is the SHA-256 digest of file bytes, so renamed
// or moved files are never re-copied.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file, env vars)
//  2. Device clients: per-protocol transports behind circuit breakers
//  3. Registry: JSON-file persisted device registry with liveness probing
//  4. Catalog: digest-indexed snapshots of each device's media library
//  5. Engine: single-slot sync orchestration with pause/resume
//  6. Supervisor tree: admin API, optional device agent, optional auto-sync
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (MIRRORWELL_ prefix, e.g. MIRRORWELL_SERVER_PORT)
//   - Config file (MIRRORWELL_CONFIG, default config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM: in-flight
// transfers are cancelled, HTTP servers drain, and the registry file is
// left consistent.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mirrorwell/mirrorwell/internal/agent"
	"github.com/mirrorwell/mirrorwell/internal/api"
	"github.com/mirrorwell/mirrorwell/internal/catalog"
	"github.com/mirrorwell/mirrorwell/internal/config"
	"github.com/mirrorwell/mirrorwell/internal/device"
	"github.com/mirrorwell/mirrorwell/internal/engine"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/registry"
	"github.com/mirrorwell/mirrorwell/internal/supervisor"
	"github.com/mirrorwell/mirrorwell/internal/transfer"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("registry", cfg.Registry.Path).
		Bool("agent", cfg.Agent.Enabled).
		Bool("auto_sync", cfg.Sync.AutoSync).
		Msg("Starting Mirrorwell")

	// Device clients share one factory so circuit breaker state persists
	// across registry, catalog and transfer use.
	factory := device.NewFactory(device.HTTPClientOptions{
		Timeout:        cfg.Sync.RequestTimeout,
		MaxRetries:     cfg.Sync.MaxRetries,
		RetryBaseDelay: cfg.Sync.RetryBaseDelay,
	})

	reg, err := registry.New(cfg.Registry.Path, factory, cfg.Sync.ProbeTimeout)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load device registry")
	}
	logging.Info().Int("devices", reg.Len()).Msg("Device registry loaded")

	scanner := catalog.NewScanner(factory, cfg.Sync.ChunkSize, cfg.Sync.RequestTimeout)
	cat := catalog.NewCatalog(scanner)
	exec := transfer.NewExecutor(factory, cfg.Sync.ChunkSize)

	eng := engine.New(reg, cat, exec)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	apiServer := api.NewServer(cfg.Server, eng)
	tree.AddAPIService(&supervisor.RunnerService{Name: "admin-api", Runner: apiServer})

	if cfg.Agent.Enabled {
		agentServer, err := agent.NewServer(cfg.Agent, scanner)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create device agent")
		}
		tree.AddSyncService(&supervisor.RunnerService{Name: "device-agent", Runner: agentServer})
		logging.Info().Str("media_root", cfg.Agent.MediaRoot).Msg("Device agent enabled")
	}

	if cfg.Sync.AutoSync {
		tree.AddSyncService(&supervisor.RunnerService{
			Name:   "auto-sync",
			Runner: &supervisor.AutoSyncRunner{Engine: eng, Interval: cfg.Sync.AutoSyncInterval},
		})
		logging.Info().Dur("interval", cfg.Sync.AutoSyncInterval).Msg("Auto-sync enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel until the supervisor finishes.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Mirrorwell stopped gracefully")
}
