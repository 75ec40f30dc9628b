// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/mirrorwell/mirrorwell/internal/logging"
)

// Runner is anything that serves until its context is cancelled. Both HTTP
// servers and the auto-sync loop satisfy it.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a Runner to suture.Service. Context cancellation is
// a normal stop, not a failure to restart.
type RunnerService struct {
	Name   string
	Runner Runner
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	logging.Info().Str("service", s.Name).Msg("Service starting")
	err := s.Runner.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.Info().Str("service", s.Name).Msg("Service stopped")
		return suture.ErrDoNotRestart
	}
	if err != nil {
		logging.Error().Str("service", s.Name).Err(err).Msg("Service exited with error")
	}
	return err
}

func (s *RunnerService) String() string { return s.Name }

// AutoSyncRunner adapts the engine's periodic auto-sync loop to the Runner
// shape expected by RunnerService.
type AutoSyncRunner struct {
	Engine   autoSyncer
	Interval time.Duration
}

type autoSyncer interface {
	RunAutoSync(ctx context.Context, interval time.Duration) error
}

// Run blocks running auto-sync rounds until ctx is cancelled.
func (r *AutoSyncRunner) Run(ctx context.Context) error {
	return r.Engine.RunAutoSync(ctx, r.Interval)
}
