// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package catalog indexes the media content of devices by digest. Local
// devices are scanned through the filesystem with streaming digests; remote
// devices report their own catalogs. Scans produce immutable snapshots, so
// a sync plan computed from a snapshot can never change underneath a
// running transfer.
package catalog

import (
	"sort"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Snapshot is an immutable view of one device's media content at a point in
// time. All accessors return copies; a snapshot never changes after
// construction.
type Snapshot struct {
	deviceID string
	version  uint64
	takenAt  time.Time
	items    []models.MediaItem
	byDigest map[string]int
}

// NewSnapshot builds a snapshot from already-known content, deduplicating
// by digest with first-occurrence-wins and ordering items by path for
// stable output. Scanner.Scan is the usual producer; this constructor
// serves callers that hold a listing from elsewhere.
func NewSnapshot(deviceID string, version uint64, takenAt time.Time, items []models.MediaItem) *Snapshot {
	deduped := make([]models.MediaItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.Digest]; dup {
			continue
		}
		seen[it.Digest] = struct{}{}
		deduped = append(deduped, it)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Path < deduped[j].Path })

	byDigest := make(map[string]int, len(deduped))
	for i, it := range deduped {
		byDigest[it.Digest] = i
	}
	return &Snapshot{
		deviceID: deviceID,
		version:  version,
		takenAt:  takenAt,
		items:    deduped,
		byDigest: byDigest,
	}
}

// DeviceID returns the scanned device's id.
func (s *Snapshot) DeviceID() string { return s.deviceID }

// Version returns the scanner-assigned monotonic snapshot version.
func (s *Snapshot) Version() uint64 { return s.version }

// TakenAt returns when the scan completed.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len returns the number of distinct items.
func (s *Snapshot) Len() int { return len(s.items) }

// Contains reports whether the snapshot holds the digest.
func (s *Snapshot) Contains(digest string) bool {
	_, ok := s.byDigest[digest]
	return ok
}

// Get returns the item with the given digest.
func (s *Snapshot) Get(digest string) (models.MediaItem, bool) {
	i, ok := s.byDigest[digest]
	if !ok {
		return models.MediaItem{}, false
	}
	return s.items[i], true
}

// Items returns a copy of all items, ordered by path.
func (s *Snapshot) Items() []models.MediaItem {
	out := make([]models.MediaItem, len(s.items))
	copy(out, s.items)
	return out
}
