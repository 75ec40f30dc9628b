// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package models

import (
	"errors"
	"fmt"
	"time"
)

// MediaType is the coarse media category derived from the file extension.
type MediaType string

// Media categories recognized by the catalog scanner.
const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
)

// MediaItem is one media file indexed by content identity.
//
// The digest of the file bytes is the identity: renamed or relocated but
// byte-identical files are the same item. Path and title are advisory
// attributes of the copy that was scanned first on its device.
type MediaItem struct {
	Digest    string     `json:"digest" validate:"required,digest"`
	Title     string     `json:"title"`
	Path      string     `json:"path" validate:"required"`
	Size      int64      `json:"size" validate:"min=0"`
	Type      MediaType  `json:"media_type" validate:"omitempty,oneof=video audio image"`
	Modified  *time.Time `json:"last_modified,omitempty"`
	PlayCount int        `json:"play_count,omitempty"`
	Rating    float64    `json:"rating,omitempty"`
}

// ErrInvalidMediaItem is wrapped by NewMediaItem on missing required fields.
var ErrInvalidMediaItem = errors.New("invalid media item")

// NewMediaItem constructs a MediaItem, validating identity fields up front.
func NewMediaItem(digest, title, path string, size int64, mediaType MediaType) (MediaItem, error) {
	if digest == "" {
		return MediaItem{}, fmt.Errorf("%w: empty digest", ErrInvalidMediaItem)
	}
	if path == "" {
		return MediaItem{}, fmt.Errorf("%w: empty path", ErrInvalidMediaItem)
	}
	if size < 0 {
		return MediaItem{}, fmt.Errorf("%w: negative size %d", ErrInvalidMediaItem, size)
	}
	return MediaItem{
		Digest: digest,
		Title:  title,
		Path:   path,
		Size:   size,
		Type:   mediaType,
	}, nil
}
