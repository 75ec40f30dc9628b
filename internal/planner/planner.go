// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package planner computes what to transfer: the items present on a source
// snapshot and absent from a target snapshot. Planning is pure; it reads
// snapshots and touches no device.
package planner

import (
	"github.com/mirrorwell/mirrorwell/internal/catalog"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Plan is the transfer worklist for one source/target pair.
type Plan struct {
	SourceID string
	TargetID string

	// Items to copy, in the source snapshot's stable path order.
	Items []models.MediaItem

	// Bytes is the total payload size of Items.
	Bytes int64

	// SourceVersion and TargetVersion pin the snapshots the plan was
	// computed from.
	SourceVersion uint64
	TargetVersion uint64
}

// Diff computes the plan that makes target a superset of source: every
// digest in source and not in target, in source order. Identity is the
// digest alone; a renamed byte-identical file is not a difference.
func Diff(source, target *catalog.Snapshot) Plan {
	p := Plan{
		SourceID:      source.DeviceID(),
		TargetID:      target.DeviceID(),
		SourceVersion: source.Version(),
		TargetVersion: target.Version(),
	}

	for _, item := range source.Items() {
		if target.Contains(item.Digest) {
			continue
		}
		p.Items = append(p.Items, item)
		p.Bytes += item.Size
	}
	return p
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool { return len(p.Items) == 0 }
