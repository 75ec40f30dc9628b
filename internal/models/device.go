// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package models provides the data model shared across the engine:
// devices, media items, sync operations and API request/response shapes.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DeviceType classifies a registered device.
type DeviceType string

// Known device classes.
const (
	DeviceNAS         DeviceType = "nas"
	DeviceWorkstation DeviceType = "workstation"
	DeviceMobile      DeviceType = "mobile"
	DeviceCloud       DeviceType = "cloud"
)

// Valid reports whether t is one of the known device classes.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceNAS, DeviceWorkstation, DeviceMobile, DeviceCloud:
		return true
	}
	return false
}

// Device transport protocols.
const (
	ProtocolLocal = "local" // engine-managed filesystem access
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
	ProtocolS3    = "s3" // S3-compatible object storage (cloud devices)
)

// Device describes one synchronization endpoint known to the registry.
//
// The JSON tags define the on-disk registry file format; the access
// credential is deliberately excluded from persistence and API responses.
// All consumers outside the registry receive copies, never live references.
type Device struct {
	ID          string     `json:"device_id" validate:"required,min=1,max=128"`
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Type        DeviceType `json:"type" validate:"required,devicetype"`
	Host        string     `json:"host"`
	Port        int        `json:"port" validate:"min=0,max=65535"`
	Protocol    string     `json:"protocol" validate:"required,oneof=local http https s3"`
	APIKey      string     `json:"-"`
	LastSeen    *time.Time `json:"last_seen"`
	Online      bool       `json:"is_online"`
	StoragePath string     `json:"storage_path" validate:"required"`
}

// ErrInvalidDevice is wrapped by NewDevice when required fields are missing
// or malformed.
var ErrInvalidDevice = errors.New("invalid device")

// NewDevice constructs a Device, validating required fields at creation time
// so the transfer path never needs defensive nil/empty checks.
func NewDevice(id, name string, deviceType DeviceType, host string, port int, protocol, storagePath string) (Device, error) {
	d := Device{
		ID:          id,
		Name:        name,
		Type:        deviceType,
		Host:        host,
		Port:        port,
		Protocol:    protocol,
		StoragePath: storagePath,
	}
	if err := d.validate(); err != nil {
		return Device{}, err
	}
	return d, nil
}

func (d Device) validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidDevice)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDevice)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown device type %q", ErrInvalidDevice, d.Type)
	}
	switch d.Protocol {
	case ProtocolLocal:
		// No network endpoint required.
	case ProtocolHTTP, ProtocolHTTPS:
		if d.Host == "" {
			return fmt.Errorf("%w: %s device requires a host", ErrInvalidDevice, d.Protocol)
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidDevice, d.Port)
		}
	case ProtocolS3:
		if d.Host == "" {
			return fmt.Errorf("%w: s3 device requires an endpoint host", ErrInvalidDevice)
		}
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidDevice, d.Protocol)
	}
	if d.StoragePath == "" {
		return fmt.Errorf("%w: empty storage path", ErrInvalidDevice)
	}
	return nil
}

// Local reports whether the engine accesses this device's storage directly
// through the filesystem rather than over the network.
func (d Device) Local() bool {
	return d.Protocol == ProtocolLocal
}

// BaseURL returns the HTTP base URL for a remote device, e.g.
// "http://192.168.1.100:8080". Meaningless for local and s3 devices.
func (d Device) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", d.Protocol, d.Host, d.Port)
}
