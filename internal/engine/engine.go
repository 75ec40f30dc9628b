// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package engine orchestrates synchronization: it owns the device registry,
// the content catalog, and the single active sync operation, and exposes
// the operations the admin API serves.
//
// Concurrency model: at most one sync operation runs at a time. StartSync
// claims the slot or fails with ErrSyncInProgress; the operation runs on
// its own goroutine rooted in the engine's lifetime, not the caller's
// request context.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirrorwell/mirrorwell/internal/catalog"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/metrics"
	"github.com/mirrorwell/mirrorwell/internal/models"
	"github.com/mirrorwell/mirrorwell/internal/planner"
	"github.com/mirrorwell/mirrorwell/internal/registry"
	"github.com/mirrorwell/mirrorwell/internal/transfer"
)

// Engine is the synchronization façade.
type Engine struct {
	registry *registry.Registry
	catalog  *catalog.Catalog
	executor *transfer.Executor

	clock func() time.Time
	newID func() string

	rootCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	active  *operation
	history map[string]models.OperationSnapshot
	stats   models.EngineStats
}

// New creates an engine over its collaborators.
func New(reg *registry.Registry, cat *catalog.Catalog, exec *transfer.Executor) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		registry: reg,
		catalog:  cat,
		executor: exec,
		clock:    time.Now,
		newID:    uuid.NewString,
		rootCtx:  ctx,
		stop:     cancel,
		history:  make(map[string]models.OperationSnapshot),
	}
}

// Close cancels any running operation and waits for it to wind down.
func (e *Engine) Close() {
	e.stop()
	e.wg.Wait()
}

// AddDevice registers a device after a connectivity probe. Returns false
// when the device did not answer; it is then not stored.
func (e *Engine) AddDevice(ctx context.Context, dev models.Device) (bool, error) {
	return e.registry.Register(ctx, dev)
}

// RemoveDevice drops a device and its cached catalog. Returns false when
// the id was unknown.
func (e *Engine) RemoveDevice(id string) (bool, error) {
	ok, err := e.registry.Remove(id)
	if ok {
		e.catalog.Forget(id)
	}
	return ok, err
}

// Devices lists the registered devices.
func (e *Engine) Devices() []models.Device {
	return e.registry.List()
}

// StartSync claims the engine's operation slot and launches a sync from
// sourceID to targetIDs. Returns the new operation id immediately; the
// work proceeds in the background.
func (e *Engine) StartSync(sourceID string, targetIDs []string) (string, error) {
	source, ok := e.registry.Get(sourceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, sourceID)
	}

	// Resolve targets up front so a typo fails fast instead of surfacing
	// mid-operation. The source and duplicates are silently dropped.
	var targets []models.Device
	seen := map[string]struct{}{sourceID: {}}
	for _, id := range targetIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		dev, ok := e.registry.Get(id)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		targets = append(targets, dev)
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("%w: no targets distinct from source", ErrDeviceNotFound)
	}

	e.mu.Lock()
	if e.active != nil && !e.active.terminal() {
		e.mu.Unlock()
		return "", ErrSyncInProgress
	}

	opCtx, cancel := context.WithCancel(e.rootCtx)
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	op := newOperation(e.newID(), sourceID, ids, e.clock().UTC(), cancel)
	e.active = op
	e.mu.Unlock()

	metrics.ActiveSyncOperations.Set(1)
	logging.Info().
		Str("operation", op.id).
		Str("source", sourceID).
		Strs("targets", ids).
		Msg("Sync operation started")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(opCtx, op, source, targets)
	}()

	return op.id, nil
}

// run executes one sync operation end to end.
func (e *Engine) run(ctx context.Context, op *operation, source models.Device, targets []models.Device) {
	err := e.runSync(ctx, op, source, targets)
	e.finalize(op, err)
}

func (e *Engine) runSync(ctx context.Context, op *operation, source models.Device, targets []models.Device) error {
	online, err := e.registry.Probe(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("source probe: %w", err)
	}
	if !online {
		return fmt.Errorf("%w: source %s", ErrDeviceOffline, source.ID)
	}

	sourceSnap, err := e.catalog.Refresh(ctx, source)
	if err != nil {
		return fmt.Errorf("source scan: %w", err)
	}

	// Plan every target before moving a byte so total progress is known
	// from the first transfer onward.
	type targetPlan struct {
		dev  models.Device
		plan planner.Plan
	}
	var plans []targetPlan
	var planned int
	seenItems := make(map[string]struct{})
	var items []models.MediaItem

	for _, target := range targets {
		online, err := e.registry.Probe(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("target probe: %w", err)
		}
		// Offline targets are excluded from the round, not recorded as
		// errors; they catch up on the next sync.
		if !online {
			logging.Warn().Str("operation", op.id).Str("target", target.ID).Msg("Skipping offline target")
			continue
		}

		targetSnap, err := e.catalog.Refresh(ctx, target)
		if err != nil {
			op.addError(fmt.Sprintf("target %s scan failed: %v", target.ID, err))
			continue
		}

		plan := planner.Diff(sourceSnap, targetSnap)
		planned += len(plan.Items)
		for _, it := range plan.Items {
			if _, dup := seenItems[it.Digest]; dup {
				continue
			}
			seenItems[it.Digest] = struct{}{}
			items = append(items, it)
		}
		plans = append(plans, targetPlan{dev: target, plan: plan})
	}

	op.setPlan(planned, items)
	logging.Info().
		Str("operation", op.id).
		Int("planned_files", planned).
		Int("reachable_targets", len(plans)).
		Msg("Sync plan computed")

	for _, tp := range plans {
		for _, item := range tp.plan.Items {
			if err := op.awaitResume(ctx); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			res := e.executor.Transfer(ctx, source, tp.dev, item)
			op.recordTransfer(res.Bytes, res.Err)
		}

		// Best effort: fold the fresh content into the cached catalog so
		// the next plan starts from reality.
		if _, err := e.catalog.Refresh(ctx, tp.dev); err != nil && ctx.Err() == nil {
			logging.Warn().Str("target", tp.dev.ID).Err(err).Msg("Post-sync rescan failed")
		}
	}

	return nil
}

// finalize retires the operation: terminal state, stats, history.
func (e *Engine) finalize(op *operation, opErr error) {
	op.finish(e.clock().UTC(), opErr)
	snap := op.Snapshot()

	e.mu.Lock()
	e.stats.TotalSyncs++
	if opErr != nil {
		e.stats.FailedSyncs++
	} else {
		e.stats.SuccessfulSyncs++
	}
	e.stats.BytesTransferred += snap.Bytes
	last := snap.StartedAt
	if snap.EndedAt != nil {
		last = *snap.EndedAt
	}
	e.stats.LastSyncTime = &last
	e.history[op.id] = snap
	if e.active == op {
		e.active = nil
	}
	e.mu.Unlock()

	metrics.ActiveSyncOperations.Set(0)
	metrics.SyncOperationsTotal.WithLabelValues(string(snap.Status)).Inc()

	evt := logging.Info()
	if opErr != nil {
		evt = logging.Error().Err(opErr)
	}
	evt.
		Str("operation", op.id).
		Str("status", string(snap.Status)).
		Int("processed", snap.ProcessedFiles).
		Int64("bytes", snap.Bytes).
		Int("errors", len(snap.Errors)).
		Msg("Sync operation finished")
}

// Progress returns the snapshot of a live or completed operation.
func (e *Engine) Progress(operationID string) (models.OperationSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil && e.active.id == operationID {
		return e.active.Snapshot(), nil
	}
	if snap, ok := e.history[operationID]; ok {
		return snap, nil
	}
	return models.OperationSnapshot{}, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
}

// Pause suspends the active operation between files. In-flight file
// transfers complete first.
func (e *Engine) Pause() error {
	e.mu.Lock()
	op := e.active
	e.mu.Unlock()

	if op == nil || !op.pause() {
		return ErrNoActiveSync
	}
	logging.Info().Str("operation", op.id).Msg("Sync paused")
	return nil
}

// Resume continues a paused operation.
func (e *Engine) Resume() error {
	e.mu.Lock()
	op := e.active
	e.mu.Unlock()

	if op == nil || !op.resume() {
		return ErrNoActiveSync
	}
	logging.Info().Str("operation", op.id).Msg("Sync resumed")
	return nil
}

// Status summarizes the engine for the admin API.
func (e *Engine) Status() models.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := models.StatusIdle
	activeOps := 0
	if e.active != nil && !e.active.terminal() {
		status = e.active.Snapshot().Status
		activeOps = 1
	}

	stats := e.stats
	if e.stats.LastSyncTime != nil {
		last := *e.stats.LastSyncTime
		stats.LastSyncTime = &last
	}

	return models.EngineStatus{
		Status:           status,
		DeviceCount:      e.registry.Len(),
		MediaCount:       e.catalog.DistinctItems(),
		ActiveOperations: activeOps,
		Stats:            stats,
	}
}

// History lists completed operations, newest first.
func (e *Engine) History() []models.OperationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.OperationSnapshot, 0, len(e.history))
	for _, snap := range e.history {
		out = append(out, snap)
	}
	// Newest first by start time; ids tiebreak for determinism.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ClearHistory drops all completed operation records.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make(map[string]models.OperationSnapshot)
}
