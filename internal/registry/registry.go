// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package registry maintains the set of known devices and their liveness
// state, persisted as a single JSON file rewritten in full on every change.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/mirrorwell/mirrorwell/internal/device"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/metrics"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// ClientFactory builds transport clients for remote devices. Implemented by
// device.Factory; faked in tests.
type ClientFactory interface {
	ClientFor(dev models.Device) (device.Client, error)
	Forget(deviceID string)
}

// Registry is the authoritative device set. All accessors return copies;
// mutation happens only through Register, Remove and the probe methods.
type Registry struct {
	path         string
	factory      ClientFactory
	probeTimeout time.Duration
	clock        func() time.Time

	mu      sync.Mutex // guards devices and the registry file
	devices map[string]models.Device
}

// New loads the registry file at path, creating an empty registry if the
// file does not exist yet.
func New(path string, factory ClientFactory, probeTimeout time.Duration) (*Registry, error) {
	r := &Registry{
		path:         path,
		factory:      factory,
		probeTimeout: probeTimeout,
		clock:        time.Now,
		devices:      make(map[string]models.Device),
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	metrics.RegisteredDevices.Set(float64(len(r.devices)))
	return r, nil
}

// load reads the persisted registry: a JSON object keyed by device id. A
// missing file is an empty registry.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read registry file: %w", err)
	}

	var devices map[string]models.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return fmt.Errorf("failed to parse registry file %s: %w", r.path, err)
	}
	for id, d := range devices {
		r.devices[id] = d
	}
	logging.Info().Int("devices", len(devices)).Str("path", r.path).Msg("Loaded device registry")
	return nil
}

// persist rewrites the registry file in full as an object keyed by device
// id (map keys marshal sorted, so output is deterministic). Written to a
// temp file and renamed so a crash never leaves a truncated registry.
// Caller holds the lock.
func (r *Registry) persist() error {
	data, err := json.MarshalIndent(r.devices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

// probeDevice checks one device's reachability. Local devices are online
// when their storage path is an existing directory; remote devices answer a
// transport probe.
func (r *Registry) probeDevice(ctx context.Context, dev models.Device) bool {
	if dev.Local() {
		info, err := os.Stat(dev.StoragePath)
		return err == nil && info.IsDir()
	}

	client, err := r.factory.ClientFor(dev)
	if err != nil {
		logging.Warn().Str("device", dev.ID).Err(err).Msg("No client for device")
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	_, err = client.Probe(probeCtx)
	if err != nil {
		logging.Debug().Str("device", dev.ID).Err(err).Msg("Device probe failed")
	}
	return err == nil
}

// Register adds or replaces a device after a connectivity probe. Returns
// true when the device was reachable and persisted; false (with nil error)
// when the probe failed. The registry never stores devices it has not seen
// alive at least once.
func (r *Registry) Register(ctx context.Context, dev models.Device) (bool, error) {
	// Replacing a device may change its endpoint or credential; any cached
	// client is stale.
	r.factory.Forget(dev.ID)

	online := r.probeDevice(ctx, dev)
	metrics.DeviceProbesTotal.WithLabelValues(probeResult(online)).Inc()
	if !online {
		logging.Warn().Str("device", dev.ID).Str("name", dev.Name).Msg("Device unreachable, not registered")
		return false, nil
	}

	now := r.clock().UTC()
	dev.Online = true
	dev.LastSeen = &now

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices[dev.ID] = dev
	if err := r.persist(); err != nil {
		delete(r.devices, dev.ID)
		return false, err
	}

	metrics.RegisteredDevices.Set(float64(len(r.devices)))
	logging.Info().
		Str("device", dev.ID).
		Str("name", dev.Name).
		Str("type", string(dev.Type)).
		Str("protocol", dev.Protocol).
		Msg("Device registered")
	return true, nil
}

// Remove deletes a device. Returns false when the device was not present;
// that is not an error.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.devices[id]
	if !ok {
		return false, nil
	}

	delete(r.devices, id)
	if err := r.persist(); err != nil {
		r.devices[id] = old
		return false, err
	}

	r.factory.Forget(id)
	metrics.RegisteredDevices.Set(float64(len(r.devices)))
	logging.Info().Str("device", id).Msg("Device removed")
	return true, nil
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (models.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	return d, ok
}

// List returns copies of all devices, ordered by id for stable output.
func (r *Registry) List() []models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Probe re-checks one device and updates its liveness state. Returns the
// fresh online flag; false with nil error when the device is unknown.
func (r *Registry) Probe(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	dev, ok := r.devices[id]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	online := r.probeDevice(ctx, dev)
	metrics.DeviceProbesTotal.WithLabelValues(probeResult(online)).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	// The device may have been replaced or removed while probing.
	current, ok := r.devices[id]
	if !ok {
		return online, nil
	}
	current.Online = online
	if online {
		now := r.clock().UTC()
		current.LastSeen = &now
	}
	r.devices[id] = current

	if err := r.persist(); err != nil {
		return online, err
	}
	return online, nil
}

// ProbeAll refreshes liveness for every device and persists once. Returns
// the ids that answered.
func (r *Registry) ProbeAll(ctx context.Context) ([]string, error) {
	devices := r.List()

	results := make(map[string]bool, len(devices))
	var online []string
	for _, dev := range devices {
		ok := r.probeDevice(ctx, dev)
		metrics.DeviceProbesTotal.WithLabelValues(probeResult(ok)).Inc()
		results[dev.ID] = ok
		if ok {
			online = append(online, dev.ID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	for id, ok := range results {
		current, exists := r.devices[id]
		if !exists {
			continue
		}
		current.Online = ok
		if ok {
			seen := now
			current.LastSeen = &seen
		}
		r.devices[id] = current
	}

	if err := r.persist(); err != nil {
		return online, err
	}

	logging.Debug().Int("online", len(online)).Int("total", len(devices)).Msg("Probed all devices")
	return online, nil
}

func probeResult(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
