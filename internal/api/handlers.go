// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mirrorwell/mirrorwell/internal/engine"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Handler serves the admin API over the engine façade.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates the admin API handler.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// RegisterDevice handles POST /api/v1/devices. A probe failure is a
// success response with registered=false, not an HTTP error: the request
// was well-formed, the device just did not answer.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.RegisterDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	dev, err := models.NewDevice(req.ID, req.Name, models.DeviceType(req.Type), req.Host, req.Port, req.Protocol, req.StoragePath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DEVICE", err.Error(), nil)
		return
	}
	dev.APIKey = req.APIKey

	registered, err := h.engine.AddDevice(r.Context(), dev)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "REGISTRATION_FAILED", "failed to persist device", err)
		return
	}

	status := http.StatusCreated
	if !registered {
		status = http.StatusOK
	}
	respondSuccess(w, status, models.RegisterDeviceResponse{
		DeviceID:   dev.ID,
		Registered: registered,
	}, started)
}

// ListDevices handles GET /api/v1/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.Devices(), started)
}

// RemoveDevice handles DELETE /api/v1/devices/{deviceID}. Removing an
// unknown device succeeds with removed=false.
func (h *Handler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "deviceID")

	removed, err := h.engine.RemoveDevice(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "REMOVAL_FAILED", "failed to persist registry", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"device_id": id,
		"removed":   removed,
	}, started)
}

// StartSync handles POST /api/v1/sync.
func (h *Handler) StartSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.StartSyncRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	opID, err := h.engine.StartSync(req.SourceID, req.TargetIDs)
	switch {
	case errors.Is(err, engine.ErrSyncInProgress):
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
		return
	case errors.Is(err, engine.ErrDeviceNotFound):
		respondError(w, http.StatusNotFound, "DEVICE_NOT_FOUND", err.Error(), nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "SYNC_FAILED", "failed to start sync", err)
		return
	}

	respondSuccess(w, http.StatusAccepted, models.StartSyncResponse{OperationID: opID}, started)
}

// SyncProgress handles GET /api/v1/sync/{operationID}.
func (h *Handler) SyncProgress(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := chi.URLParam(r, "operationID")

	snap, err := h.engine.Progress(id)
	if errors.Is(err, engine.ErrOperationNotFound) {
		respondError(w, http.StatusNotFound, "OPERATION_NOT_FOUND", err.Error(), nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "failed to read operation", err)
		return
	}
	respondSuccess(w, http.StatusOK, snap, started)
}

// SyncHistory handles GET /api/v1/sync.
func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.History(), started)
}

// ClearSyncHistory handles DELETE /api/v1/sync/history.
func (h *Handler) ClearSyncHistory(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	h.engine.ClearHistory()
	respondSuccess(w, http.StatusOK, map[string]string{"history": "cleared"}, started)
}

// resolveActiveOperation checks that the path's operation id names the
// operation currently running. The engine runs one operation at a time, so
// pause and resume act on the active slot once the id checks out.
func (h *Handler) resolveActiveOperation(w http.ResponseWriter, r *http.Request) bool {
	id := chi.URLParam(r, "operationID")
	snap, err := h.engine.Progress(id)
	if errors.Is(err, engine.ErrOperationNotFound) {
		respondError(w, http.StatusNotFound, "OPERATION_NOT_FOUND", err.Error(), nil)
		return false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "failed to read operation", err)
		return false
	}
	if snap.EndedAt != nil {
		respondError(w, http.StatusConflict, "NO_ACTIVE_SYNC", "operation already finished", nil)
		return false
	}
	return true
}

// PauseSync handles POST /api/v1/sync/{operationID}/pause.
func (h *Handler) PauseSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.resolveActiveOperation(w, r) {
		return
	}
	if err := h.engine.Pause(); err != nil {
		respondError(w, http.StatusConflict, "NO_ACTIVE_SYNC", err.Error(), nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"sync": "paused"}, started)
}

// ResumeSync handles POST /api/v1/sync/{operationID}/resume.
func (h *Handler) ResumeSync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if !h.resolveActiveOperation(w, r) {
		return
	}
	if err := h.engine.Resume(); err != nil {
		respondError(w, http.StatusConflict, "NO_ACTIVE_SYNC", err.Error(), nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"sync": "resumed"}, started)
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, h.engine.Status(), started)
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, map[string]string{"status": "healthy"}, started)
}
