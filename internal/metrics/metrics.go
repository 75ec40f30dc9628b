// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package metrics defines the Prometheus collectors for the sync engine.
// All collectors are registered with the default registry via promauto and
// exposed on /metrics by the admin API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeviceProbesTotal counts connectivity probes by outcome.
	DeviceProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_device_probes_total",
		Help: "Device connectivity probes by result (online/offline)",
	}, []string{"result"})

	// RegisteredDevices tracks the current registry size.
	RegisteredDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrorwell_registered_devices",
		Help: "Number of devices currently in the registry",
	})

	// CatalogScansTotal counts catalog scans by device protocol.
	CatalogScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_catalog_scans_total",
		Help: "Catalog scans by device protocol",
	}, []string{"protocol"})

	// CatalogScanDuration observes wall time of a full device scan.
	CatalogScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirrorwell_catalog_scan_duration_seconds",
		Help:    "Duration of catalog scans",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// TransfersTotal counts individual file transfers by result.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_transfers_total",
		Help: "File transfers by result (success/failure)",
	}, []string{"result"})

	// TransferBytesTotal accumulates payload bytes moved to targets.
	TransferBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrorwell_transfer_bytes_total",
		Help: "Total bytes transferred to target devices",
	})

	// TransferDuration observes per-file transfer wall time.
	TransferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirrorwell_transfer_duration_seconds",
		Help:    "Duration of individual file transfers",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// SyncOperationsTotal counts completed sync operations by final status.
	SyncOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_sync_operations_total",
		Help: "Completed sync operations by final status (idle/error)",
	}, []string{"status"})

	// ActiveSyncOperations is 0 or 1: the engine runs a single operation
	// at a time.
	ActiveSyncOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirrorwell_active_sync_operations",
		Help: "Number of sync operations currently running",
	})

	// HTTPRequestsTotal counts admin API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_http_requests_total",
		Help: "Admin API requests by method, path and status code",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes admin API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirrorwell_http_request_duration_seconds",
		Help:    "Admin API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Circuit breaker collectors, driven by the device client wrapper.
var (
	// CircuitBreakerState is 0 closed, 1 half-open, 2 open, per device.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirrorwell_circuit_breaker_state",
		Help: "Circuit breaker state per device (0=closed, 1=half-open, 2=open)",
	}, []string{"device"})

	// CircuitBreakerTransitions counts state changes per device.
	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions per device",
	}, []string{"device", "from", "to"})

	// CircuitBreakerRequests counts requests through each breaker by outcome.
	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirrorwell_circuit_breaker_requests_total",
		Help: "Requests through the circuit breaker by outcome (success/failure/rejected)",
	}, []string{"device", "outcome"})

	// CircuitBreakerConsecutiveFailures mirrors gobreaker's failure counter.
	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mirrorwell_circuit_breaker_consecutive_failures",
		Help: "Consecutive failures seen by the circuit breaker per device",
	}, []string{"device"})
)
