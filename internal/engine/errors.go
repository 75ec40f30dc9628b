// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package engine

import "errors"

// Sentinel errors returned at the engine boundary. API handlers map these
// to HTTP status codes with errors.Is.
var (
	// ErrSyncInProgress rejects a second concurrent sync operation. The
	// engine runs exactly one operation at a time.
	ErrSyncInProgress = errors.New("a sync operation is already in progress")

	// ErrDeviceNotFound names a device id the registry does not hold.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceOffline names a device that failed its liveness probe.
	ErrDeviceOffline = errors.New("device offline")

	// ErrOperationNotFound names an operation id with no live or
	// historical record.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrNoActiveSync rejects pause/resume when nothing is running.
	ErrNoActiveSync = errors.New("no sync operation in progress")
)
