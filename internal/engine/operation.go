// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// pausePollInterval is how often a paused operation re-checks its flag.
// Pause takes effect between files, never mid-transfer.
const pausePollInterval = 100 * time.Millisecond

// operation is the mutable state of one running sync. All access goes
// through the mutex; Snapshot hands out consistent copies.
type operation struct {
	id        string
	sourceID  string
	targetIDs []string
	cancel    context.CancelFunc

	mu           sync.Mutex
	status       models.SyncStatus
	paused       bool
	planned      int
	processed    int
	bytes        int64
	startedAt    time.Time
	endedAt      *time.Time
	errs         []string
	errorMessage string
	items        []models.MediaItem
}

func newOperation(id, sourceID string, targetIDs []string, startedAt time.Time, cancel context.CancelFunc) *operation {
	targets := make([]string, len(targetIDs))
	copy(targets, targetIDs)
	return &operation{
		id:        id,
		sourceID:  sourceID,
		targetIDs: targets,
		cancel:    cancel,
		status:    models.StatusSyncing,
		startedAt: startedAt,
	}
}

// setPlan records the total worklist once planning is done.
func (o *operation) setPlan(planned int, items []models.MediaItem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.planned = planned
	o.items = items
}

// recordTransfer accounts for one finished transfer attempt.
func (o *operation) recordTransfer(bytes int64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed++
	o.bytes += bytes
	if err != nil {
		o.errs = append(o.errs, err.Error())
	}
}

// addError appends a non-fatal per-target or per-file error.
func (o *operation) addError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, msg)
}

// pause requests a pause. Returns false when the operation is not in a
// pausable state.
func (o *operation) pause() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != models.StatusSyncing {
		return false
	}
	o.paused = true
	o.status = models.StatusPaused
	return true
}

// resume clears a pause. Returns false when the operation is not paused.
func (o *operation) resume() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != models.StatusPaused {
		return false
	}
	o.paused = false
	o.status = models.StatusSyncing
	return true
}

// awaitResume blocks while paused, polling the flag. Returns the context
// error when the operation is cancelled mid-pause.
func (o *operation) awaitResume(ctx context.Context) error {
	for {
		o.mu.Lock()
		paused := o.paused
		o.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
}

// finish moves the operation to its terminal state. A failed operation
// carries errorMessage; a completed one lands on idle even when per-file
// errors accumulated.
func (o *operation) finish(endedAt time.Time, opErr error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	end := endedAt
	o.endedAt = &end
	o.paused = false
	if opErr != nil {
		o.status = models.StatusError
		o.errorMessage = opErr.Error()
		o.errs = append(o.errs, opErr.Error())
		return
	}
	o.status = models.StatusIdle
}

// progress computes completion percent. Monotonic: it only ever grows, and
// a finished operation reports exactly 100.
func (o *operation) progressLocked() float64 {
	if o.endedAt != nil && o.status != models.StatusError {
		return 100
	}
	if o.planned == 0 {
		if o.endedAt != nil {
			return 100
		}
		return 0
	}
	p := float64(o.processed) / float64(o.planned) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Snapshot returns a point-in-time copy for API consumers.
func (o *operation) Snapshot() models.OperationSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := models.OperationSnapshot{
		ID:             o.id,
		SourceID:       o.sourceID,
		TargetIDs:      append([]string(nil), o.targetIDs...),
		Status:         o.status,
		Progress:       o.progressLocked(),
		PlannedFiles:   o.planned,
		ProcessedFiles: o.processed,
		Bytes:          o.bytes,
		StartedAt:      o.startedAt,
		Errors:         append([]string(nil), o.errs...),
		ErrorMessage:   o.errorMessage,
		Items:          append([]models.MediaItem(nil), o.items...),
	}
	if o.endedAt != nil {
		end := *o.endedAt
		snap.EndedAt = &end
	}
	return snap
}

// terminal reports whether the operation has finished.
func (o *operation) terminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.endedAt != nil
}
