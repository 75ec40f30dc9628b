// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package device

import (
	"fmt"
	"sync"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Factory builds and caches one client per remote device. Caching keeps a
// device's circuit breaker state alive across probes and transfers; a
// breaker recreated per request would never open.
type Factory struct {
	opts HTTPClientOptions

	mu      sync.Mutex
	clients map[string]Client
}

// NewFactory creates a client factory with shared HTTP tuning.
func NewFactory(opts HTTPClientOptions) *Factory {
	return &Factory{
		opts:    opts,
		clients: make(map[string]Client),
	}
}

// ClientFor returns the cached client for the device, building one on first
// use. Local devices return ErrLocalDevice: the engine reaches them through
// the filesystem.
func (f *Factory) ClientFor(dev models.Device) (Client, error) {
	if dev.Local() {
		return nil, ErrLocalDevice
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[dev.ID]; ok {
		return c, nil
	}

	var inner Client
	switch dev.Protocol {
	case models.ProtocolHTTP, models.ProtocolHTTPS:
		inner = NewHTTPClient(dev, f.opts)
	case models.ProtocolS3:
		osc, err := NewObjectStoreClient(dev)
		if err != nil {
			return nil, err
		}
		inner = osc
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", models.ErrInvalidDevice, dev.Protocol)
	}

	c := NewBreakerClient(dev.ID, inner)
	f.clients[dev.ID] = c
	return c, nil
}

// Forget drops the cached client for a device, e.g. after removal or when
// its endpoint or credential changed.
func (f *Factory) Forget(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, deviceID)
}
