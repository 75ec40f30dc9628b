// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package device provides transport clients for remote devices: an HTTP
// client for devices running the Mirrorwell agent, an S3-compatible object
// store client for cloud devices, and a circuit breaker wrapper shared by
// both. Local devices are accessed through the filesystem and never get a
// client.
package device

import (
	"context"
	"errors"
	"io"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// ErrLocalDevice is returned by the factory for devices the engine reaches
// through the filesystem rather than a network transport.
var ErrLocalDevice = errors.New("local device has no network client")

// ErrNotFound is returned when the remote device does not hold the
// requested item.
var ErrNotFound = errors.New("item not found on device")

// Client is the transport-neutral view of one remote device.
//
// Implementations are safe for concurrent use. All methods honor context
// cancellation; Download and Upload stream and never buffer whole files.
type Client interface {
	// Probe checks connectivity and returns the device's self-reported
	// status. A non-nil error means the device is offline.
	Probe(ctx context.Context) (*models.AgentStatus, error)

	// ListMedia returns the device's media catalog. Digests are computed
	// remotely and trusted as-is.
	ListMedia(ctx context.Context) ([]models.MediaItem, error)

	// Download opens a stream for the item with the given digest.
	// The caller must close the returned reader.
	Download(ctx context.Context, digest string) (io.ReadCloser, error)

	// Upload stores the item's bytes on the device. size is the expected
	// payload length; implementations may use it for preallocation and
	// integrity checks.
	Upload(ctx context.Context, item models.MediaItem, r io.Reader, size int64) error
}
