// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package device

import (
	"errors"
	"testing"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

func TestFactoryLocalDevice(t *testing.T) {
	f := NewFactory(HTTPClientOptions{})
	dev := models.Device{ID: "pc1", Protocol: models.ProtocolLocal, StoragePath: "/data"}
	if _, err := f.ClientFor(dev); !errors.Is(err, ErrLocalDevice) {
		t.Fatalf("ClientFor(local) error = %v, want ErrLocalDevice", err)
	}
}

func TestFactoryCachesClients(t *testing.T) {
	f := NewFactory(HTTPClientOptions{})
	dev := models.Device{
		ID: "nas1", Protocol: models.ProtocolHTTP,
		Host: "192.168.1.100", Port: 8080, StoragePath: "/media",
	}
	c1, err := f.ClientFor(dev)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := f.ClientFor(dev)
	if err != nil {
		t.Fatal(err)
	}
	// Same instance: breaker state must survive across calls.
	if c1 != c2 {
		t.Error("factory returned a fresh client for a cached device")
	}

	f.Forget(dev.ID)
	c3, err := f.ClientFor(dev)
	if err != nil {
		t.Fatal(err)
	}
	if c3 == c1 {
		t.Error("Forget did not drop the cached client")
	}
}

func TestFactoryRejectsBadS3Credential(t *testing.T) {
	f := NewFactory(HTTPClientOptions{})
	dev := models.Device{
		ID: "cloud1", Protocol: models.ProtocolS3,
		Host: "minio.example.com:9000", APIKey: "no-separator",
		StoragePath: "bucket/media",
	}
	if _, err := f.ClientFor(dev); !errors.Is(err, models.ErrInvalidDevice) {
		t.Fatalf("ClientFor(bad s3 credential) error = %v, want ErrInvalidDevice", err)
	}
}
