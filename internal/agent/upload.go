// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// handleUpload receives one item as multipart form data: a "metadata" part
// carrying the catalog attributes, then a "file" part with the raw bytes.
// The parts are consumed streaming; the payload never sits in memory. The
// file lands under a temp name and is renamed only after the received
// digest matches the declared one.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "expected multipart form data", err)
		return
	}

	var item models.MediaItem
	var haveMeta, haveFile bool
	var received int64

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed multipart stream", err)
			return
		}

		switch part.FormName() {
		case "metadata":
			if err := json.NewDecoder(part).Decode(&item); err != nil {
				respondError(w, http.StatusBadRequest, "BAD_METADATA", "metadata part is not valid JSON", err)
				return
			}
			haveMeta = true

		case "file":
			// Metadata must precede the file part: the digest drives both
			// the destination name check and integrity verification.
			if !haveMeta {
				respondError(w, http.StatusBadRequest, "BAD_REQUEST", "metadata part must precede file part", nil)
				return
			}
			received, err = s.receiveFile(item, part)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "failed to store file", err)
				return
			}
			haveFile = true
		}
		_ = part.Close()
	}

	if !haveMeta || !haveFile {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "upload requires metadata and file parts", nil)
		return
	}

	s.invalidateSnapshot()
	logging.Info().
		Str("digest", item.Digest).
		Str("title", item.Title).
		Int64("bytes", received).
		Msg("Upload stored")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"digest": item.Digest,
		"bytes":  received,
	})
}

// receiveFile streams one file part to the media root with digest
// verification.
func (s *Server) receiveFile(item models.MediaItem, part io.Reader) (int64, error) {
	if item.Digest == "" {
		return 0, errors.New("metadata missing digest")
	}

	destPath := filepath.Join(s.cfg.MediaRoot, safeName(item))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.cfg.MediaRoot, ".upload-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // no-op after successful rename
	}()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), part)
	if err != nil {
		return written, err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != item.Digest {
		return written, fmt.Errorf("digest mismatch: got %s, want %s", got, item.Digest)
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return written, err
	}
	return written, nil
}

// safeName derives a destination file name from the item, stripped of any
// path components a hostile peer could smuggle in.
func safeName(item models.MediaItem) string {
	name := item.Title
	if name == "" {
		name = filepath.Base(strings.ReplaceAll(item.Path, "\\", "/"))
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = item.Digest
	}
	// Keep the original extension so rescans classify the file correctly.
	if filepath.Ext(name) == "" {
		if ext := filepath.Ext(item.Path); ext != "" {
			name += ext
		}
	}
	return name
}

// writeJSON sends a JSON body with proper headers.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends a structured error body in the shared API shape.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("Agent error")
	}
	writeJSON(w, status, models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}
