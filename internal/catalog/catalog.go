// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package catalog

import (
	"context"
	"sync"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Catalog caches the latest snapshot per device. Refresh replaces a
// device's snapshot wholesale; readers always see a complete scan, never a
// partial one.
type Catalog struct {
	scanner *Scanner

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewCatalog creates a catalog backed by the scanner.
func NewCatalog(scanner *Scanner) *Catalog {
	return &Catalog{
		scanner:   scanner,
		snapshots: make(map[string]*Snapshot),
	}
}

// Refresh scans the device and installs the fresh snapshot.
func (c *Catalog) Refresh(ctx context.Context, dev models.Device) (*Snapshot, error) {
	snap, err := c.scanner.Scan(ctx, dev)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshots[dev.ID] = snap
	c.mu.Unlock()
	return snap, nil
}

// Snapshot returns the cached snapshot for a device, if any.
func (c *Catalog) Snapshot(deviceID string) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[deviceID]
	return s, ok
}

// Forget drops a device's cached snapshot, e.g. after removal.
func (c *Catalog) Forget(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, deviceID)
}

// DistinctItems returns the number of distinct digests across all cached
// snapshots: the size of the union library.
func (c *Catalog) DistinctItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, snap := range c.snapshots {
		for _, it := range snap.items {
			seen[it.Digest] = struct{}{}
		}
	}
	return len(seen)
}
