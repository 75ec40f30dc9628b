// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/logging"
)

type countingRunner struct {
	starts atomic.Int32
	err    error
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.starts.Add(1)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeStartsAndStopsServices(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	runner := &countingRunner{}
	tree.AddSyncService(&RunnerService{Name: "test-runner", Runner: runner})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for runner.starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runner.starts.Load() == 0 {
		t.Fatal("service never started")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("supervisor error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestFailingServiceIsRestarted(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(logging.NewSlogLogger(), cfg)

	runner := &countingRunner{err: errors.New("boom")}
	tree.AddSyncService(&RunnerService{Name: "crasher", Runner: runner})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for runner.starts.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := runner.starts.Load(); got < 2 {
		t.Errorf("service started %d times, want >= 2", got)
	}

	cancel()
	<-errCh
}

func TestCancelledRunnerIsNotRestarted(t *testing.T) {
	runner := &countingRunner{}
	svc := &RunnerService{Name: "quitter", Runner: runner}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); err == nil {
		t.Error("expected do-not-restart sentinel, got nil")
	}
	if runner.starts.Load() != 1 {
		t.Errorf("starts = %d", runner.starts.Load())
	}
}

func TestDefaultsAppliedToZeroConfig(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 || tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", tree.config)
	}
}
