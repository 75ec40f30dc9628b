// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/metrics"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// BreakerClient wraps a Client with a circuit breaker so a dead device
// stops consuming probe and transfer attempts instead of timing out on
// every request.
//
// The breaker uses real time for its interval and timeout calculations.
// Timing governs failure recovery, not data integrity; unit tests exercise
// the wrapped client directly.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient wraps client with a per-device circuit breaker.
// Configuration:
//   - Max 3 requests in half-open state
//   - 1 minute measurement window
//   - 2 minute open period before attempting recovery
//   - Opens at >= 60% failure rate with at least 10 requests
func NewBreakerClient(deviceID string, client Client) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(deviceID).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(deviceID).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        deviceID,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("device", deviceID).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening device circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("device", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Device circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{client: client, cb: cb, name: deviceID}
}

// execute runs one device call through the breaker and records metrics.
func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Str("device", b.name).Err(err).Msg("Device request rejected by open circuit")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			counts := b.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// castResult type-casts a breaker result with error checking.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Probe checks connectivity with circuit breaker protection.
func (b *BreakerClient) Probe(ctx context.Context) (*models.AgentStatus, error) {
	return castResult[*models.AgentStatus](b.execute(func() (interface{}, error) {
		return b.client.Probe(ctx)
	}))
}

// ListMedia retrieves the device catalog with circuit breaker protection.
func (b *BreakerClient) ListMedia(ctx context.Context) ([]models.MediaItem, error) {
	return castResult[[]models.MediaItem](b.execute(func() (interface{}, error) {
		return b.client.ListMedia(ctx)
	}))
}

// Download opens an item stream with circuit breaker protection. Only the
// stream open counts toward the breaker; read errors surface to the caller.
func (b *BreakerClient) Download(ctx context.Context, digest string) (io.ReadCloser, error) {
	return castResult[io.ReadCloser](b.execute(func() (interface{}, error) {
		return b.client.Download(ctx, digest)
	}))
}

// Upload stores an item with circuit breaker protection.
func (b *BreakerClient) Upload(ctx context.Context, item models.MediaItem, r io.Reader, size int64) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.client.Upload(ctx, item, r, size)
	})
	return err
}
