// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package agent implements the device-side HTTP server: the endpoint a
// Mirrorwell engine probes, lists, downloads from and uploads to. Running
// the agent makes this host's media root available as a remote device.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/mirrorwell/mirrorwell/internal/catalog"
	"github.com/mirrorwell/mirrorwell/internal/config"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// Version is the agent protocol version reported on /status.
const Version = "1.0.0"

// snapshotTTL bounds how stale a served listing may be. Listing requests
// inside the window reuse the cached scan.
const snapshotTTL = 30 * time.Second

// Server is the device agent.
type Server struct {
	cfg     config.AgentConfig
	scanner *catalog.Scanner
	self    models.Device

	mu       sync.Mutex
	snapshot *catalog.Snapshot
	scanned  time.Time
}

// NewServer creates an agent serving the configured media root.
func NewServer(cfg config.AgentConfig, scanner *catalog.Scanner) (*Server, error) {
	name := cfg.Name
	if name == "" {
		name = "mirrorwell-agent"
	}
	// The agent views its own root as a local device.
	self, err := models.NewDevice("self", name, models.DeviceWorkstation, "", 0, models.ProtocolLocal, cfg.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid agent media root: %w", err)
	}
	return &Server{cfg: cfg, scanner: scanner, self: self}, nil
}

// Routes builds the agent's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
	}
	r.Use(s.authenticate)

	r.Get("/status", s.handleStatus)
	r.Get("/media", s.handleMedia)
	r.Get("/download/{itemID}", s.handleDownload)
	r.Post("/upload", s.handleUpload)
	return r
}

// authenticate enforces the shared API key when one is configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentSnapshot returns a fresh-enough scan of the media root.
func (s *Server) currentSnapshot(ctx context.Context) (*catalog.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && time.Since(s.scanned) < snapshotTTL {
		return s.snapshot, nil
	}

	snap, err := s.scanner.Scan(ctx, s.self)
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	s.scanned = time.Now()
	return snap, nil
}

// invalidateSnapshot forces the next listing to rescan, called after an
// upload changes the root.
func (s *Server) invalidateSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}

// handleStatus serves the connectivity probe.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.AgentStatus{
		Status:     "online",
		DeviceName: s.self.Name,
		Version:    Version,
		MediaRoot:  s.cfg.MediaRoot,
	})
}

// handleMedia serves the catalog listing.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	snap, err := s.currentSnapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SCAN_FAILED", "media root scan failed", err)
		return
	}
	items := snap.Items()
	writeJSON(w, http.StatusOK, models.MediaListing{Items: items, Count: len(items)})
}

// handleDownload streams one item's bytes by digest.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	digest := chi.URLParam(r, "itemID")

	snap, err := s.currentSnapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SCAN_FAILED", "media root scan failed", err)
		return
	}
	item, ok := snap.Get(digest)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no item with that digest", nil)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	http.ServeFile(w, r, item.Path)
}

// Run serves the agent until ctx is cancelled, then drains with a graceful
// shutdown. Designed to run under the supervision tree.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Str("media_root", s.cfg.MediaRoot).Msg("Agent listening")
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
