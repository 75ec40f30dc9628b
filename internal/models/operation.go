// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package models

import "time"

// SyncStatus is the lifecycle state of a sync operation (and, by extension,
// of the engine's single active slot).
type SyncStatus string

// Operation states. idle doubles as terminal-success: a completed operation
// reports idle even when its error list is non-empty, so callers must
// inspect Errors to detect partial failure.
const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusPaused  SyncStatus = "paused"
	StatusError   SyncStatus = "error"
)

// Terminal reports whether the status is a resting state from which a new
// operation may be started.
func (s SyncStatus) Terminal() bool {
	return s == StatusIdle || s == StatusError
}

// OperationSnapshot is a point-in-time copy of one sync operation's state,
// safe to hand to API callers while the operation keeps running.
type OperationSnapshot struct {
	ID             string      `json:"operation_id"`
	SourceID       string      `json:"source_device"`
	TargetIDs      []string    `json:"target_devices"`
	Status         SyncStatus  `json:"status"`
	Progress       float64     `json:"progress"`
	PlannedFiles   int         `json:"total_planned_files"`
	ProcessedFiles int         `json:"processed_files"`
	Bytes          int64       `json:"bytes_transferred"`
	StartedAt      time.Time   `json:"start_time"`
	EndedAt        *time.Time  `json:"end_time,omitempty"`
	Errors         []string    `json:"errors,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	Items          []MediaItem `json:"media_items,omitempty"`
}

// EngineStats accumulates totals across all operations since process start.
type EngineStats struct {
	TotalSyncs       int64      `json:"total_syncs"`
	SuccessfulSyncs  int64      `json:"successful_syncs"`
	FailedSyncs      int64      `json:"failed_syncs"`
	BytesTransferred int64      `json:"total_bytes_transferred"`
	LastSyncTime     *time.Time `json:"last_sync_time,omitempty"`
}

// EngineStatus is the summary exposed at the engine boundary.
type EngineStatus struct {
	Status           SyncStatus  `json:"status"`
	DeviceCount      int         `json:"device_count"`
	MediaCount       int         `json:"media_count"`
	ActiveOperations int         `json:"active_operations"`
	Stats            EngineStats `json:"stats"`
}
