// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package models

import "time"

// APIResponse is the standardized wrapper for all HTTP endpoint responses.
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2026-08-25T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload populated when Status is "error".
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RegisterDeviceRequest is the POST /api/v1/devices payload.
type RegisterDeviceRequest struct {
	ID          string `json:"device_id" validate:"required,min=1,max=128"`
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Type        string `json:"type" validate:"required,devicetype"`
	Host        string `json:"host"`
	Port        int    `json:"port" validate:"min=0,max=65535"`
	Protocol    string `json:"protocol" validate:"required,oneof=local http https s3"`
	APIKey      string `json:"api_key"`
	StoragePath string `json:"storage_path" validate:"required"`
}

// StartSyncRequest is the POST /api/v1/sync payload.
type StartSyncRequest struct {
	SourceID  string   `json:"source_device" validate:"required"`
	TargetIDs []string `json:"target_devices" validate:"required,min=1,dive,required"`
}

// StartSyncResponse acknowledges an accepted sync operation.
type StartSyncResponse struct {
	OperationID string `json:"operation_id"`
}

// RegisterDeviceResponse reports the outcome of a registration attempt.
// Registered is false when the connectivity probe failed; that is a data
// outcome, not an HTTP error.
type RegisterDeviceResponse struct {
	DeviceID   string `json:"device_id"`
	Registered bool   `json:"registered"`
}

// AgentStatus is the device agent's GET /status body, consumed by the
// engine's connectivity probe.
type AgentStatus struct {
	Status     string `json:"status"`
	DeviceName string `json:"device_name,omitempty"`
	Version    string `json:"version,omitempty"`
	MediaRoot  string `json:"media_root,omitempty"`
}

// MediaListing is the device agent's GET /media body: the catalog listing
// for a remote device, digests computed (and trusted) remotely.
type MediaListing struct {
	Items []MediaItem `json:"media_items"`
	Count int         `json:"count"`
}
