// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package models

import (
	"path/filepath"
	"strings"
)

// mediaExtensions maps lowercase file extensions to media categories.
// Files outside these sets are invisible to the catalog.
var mediaExtensions = map[string]MediaType{
	".mp4": MediaVideo, ".mkv": MediaVideo, ".avi": MediaVideo,
	".mov": MediaVideo, ".wmv": MediaVideo, ".webm": MediaVideo,
	".m4v": MediaVideo, ".ts": MediaVideo,

	".mp3": MediaAudio, ".flac": MediaAudio, ".m4a": MediaAudio,
	".ogg": MediaAudio, ".wav": MediaAudio, ".aac": MediaAudio,
	".opus": MediaAudio,

	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage,
	".gif": MediaImage, ".webp": MediaImage, ".heic": MediaImage,
}

// MediaTypeForPath classifies a file path by extension. ok is false for
// paths the catalog does not index.
func MediaTypeForPath(path string) (MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	t, ok := mediaExtensions[ext]
	return t, ok
}
