// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// AutoSyncOnce runs one automatic sync round: probe everything, take the
// first online NAS (by device id) as the source, and mirror it to every
// other online device. A round with no eligible source or no targets is a
// quiet no-op, as is a round that finds an operation already running.
func (e *Engine) AutoSyncOnce(ctx context.Context) error {
	online, err := e.registry.ProbeAll(ctx)
	if err != nil {
		return err
	}
	onlineSet := make(map[string]struct{}, len(online))
	for _, id := range online {
		onlineSet[id] = struct{}{}
	}

	var sourceID string
	for _, dev := range e.registry.List() { // id-ordered
		if dev.Type != models.DeviceNAS {
			continue
		}
		if _, ok := onlineSet[dev.ID]; ok {
			sourceID = dev.ID
			break
		}
	}
	if sourceID == "" {
		logging.Debug().Msg("Auto-sync: no online NAS source")
		return nil
	}

	var targets []string
	for _, id := range online {
		if id != sourceID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		logging.Debug().Str("source", sourceID).Msg("Auto-sync: no online targets")
		return nil
	}

	opID, err := e.StartSync(sourceID, targets)
	if errors.Is(err, ErrSyncInProgress) {
		logging.Debug().Msg("Auto-sync: operation already running, skipping round")
		return nil
	}
	if err != nil {
		return err
	}

	logging.Info().
		Str("operation", opID).
		Str("source", sourceID).
		Strs("targets", targets).
		Msg("Auto-sync round started")
	return nil
}

// RunAutoSync runs rounds at the given interval until ctx is cancelled.
// Designed to run under the supervision tree.
func (e *Engine) RunAutoSync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.AutoSyncOnce(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("Auto-sync round failed")
			}
		}
	}
}
