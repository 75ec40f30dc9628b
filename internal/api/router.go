// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package api serves Mirrorwell's admin HTTP API: device registration,
// sync control and progress, engine status and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirrorwell/mirrorwell/internal/config"
	"github.com/mirrorwell/mirrorwell/internal/engine"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/metrics"
)

// Server is the admin API server.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
}

// NewServer creates the admin API server over the engine.
func NewServer(cfg config.ServerConfig, e *engine.Engine) *Server {
	return &Server{cfg: cfg, handler: NewHandler(e)}
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument)

	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if s.cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Post("/", s.handler.RegisterDevice)
			r.Get("/", s.handler.ListDevices)
			r.Delete("/{deviceID}", s.handler.RemoveDevice)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", s.handler.StartSync)
			r.Get("/", s.handler.SyncHistory)
			r.Delete("/history", s.handler.ClearSyncHistory)
			r.Get("/{operationID}", s.handler.SyncProgress)
			r.Post("/{operationID}/pause", s.handler.PauseSync)
			r.Post("/{operationID}/resume", s.handler.ResumeSync)
		})

		r.Get("/status", s.handler.Status)
		r.Get("/health", s.handler.Health)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// instrument records per-route request counts and latency. The route
// pattern is resolved after the handler runs so path parameters do not
// explode label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(started).Seconds())
	})
}

// Run serves the admin API until ctx is cancelled, then drains with a
// graceful shutdown. Designed to run under the supervision tree.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("Admin API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ctx.Err()
}
