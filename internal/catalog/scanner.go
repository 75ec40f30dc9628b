// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirrorwell/mirrorwell/internal/device"
	"github.com/mirrorwell/mirrorwell/internal/logging"
	"github.com/mirrorwell/mirrorwell/internal/metrics"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// ClientFactory builds transport clients for remote devices.
type ClientFactory interface {
	ClientFor(dev models.Device) (device.Client, error)
}

// Scanner produces catalog snapshots for devices.
type Scanner struct {
	factory        ClientFactory
	chunkSize      int
	requestTimeout time.Duration
	clock          func() time.Time
	version        atomic.Uint64
}

// NewScanner creates a scanner. chunkSize bounds the digest read buffer;
// requestTimeout bounds remote catalog listings.
func NewScanner(factory ClientFactory, chunkSize int, requestTimeout time.Duration) *Scanner {
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	return &Scanner{
		factory:        factory,
		chunkSize:      chunkSize,
		requestTimeout: requestTimeout,
		clock:          time.Now,
	}
}

// Scan indexes one device's media content. Local devices are walked on the
// filesystem; remote devices report their own listings with digests
// computed remotely.
func (s *Scanner) Scan(ctx context.Context, dev models.Device) (*Snapshot, error) {
	start := s.clock()

	var items []models.MediaItem
	var err error
	if dev.Local() {
		items, err = s.scanLocal(ctx, dev)
	} else {
		items, err = s.scanRemote(ctx, dev)
	}
	if err != nil {
		return nil, err
	}

	elapsed := s.clock().Sub(start)
	metrics.CatalogScansTotal.WithLabelValues(dev.Protocol).Inc()
	metrics.CatalogScanDuration.Observe(elapsed.Seconds())

	snap := NewSnapshot(dev.ID, s.version.Add(1), s.clock().UTC(), items)
	logging.Info().
		Str("device", dev.ID).
		Int("items", snap.Len()).
		Dur("elapsed", elapsed).
		Msg("Catalog scan complete")
	return snap, nil
}

// scanLocal walks the device's storage path, digesting every file with a
// recognized media extension. Unreadable files are skipped with a warning
// rather than failing the whole scan.
func (s *Scanner) scanLocal(ctx context.Context, dev models.Device) ([]models.MediaItem, error) {
	root := dev.StoragePath
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("storage path unavailable: %w", err)
	}

	var items []models.MediaItem
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("Skipping unreadable directory entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		mediaType, ok := models.MediaTypeForPath(path)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("Skipping unstatable file")
			return nil
		}

		digest, err := s.digestFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn().Str("path", path).Err(err).Msg("Skipping undigestable file")
			return nil
		}

		mod := info.ModTime().UTC()
		items = append(items, models.MediaItem{
			Digest:   digest,
			Title:    titleFor(path),
			Path:     path,
			Size:     info.Size(),
			Type:     mediaType,
			Modified: &mod,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog walk failed: %w", err)
	}
	return items, nil
}

// digestPool recycles read buffers across scans.
var digestPool = sync.Pool{}

// digestFile computes the hex SHA-256 of a file's bytes, reading in
// chunk-sized blocks so memory stays bounded regardless of file size.
func (s *Scanner) digestFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, _ := digestPool.Get().([]byte)
	if len(buf) != s.chunkSize {
		buf = make([]byte, s.chunkSize)
	}
	defer digestPool.Put(buf) //nolint:staticcheck // slice header allocation is negligible

	h := sha256.New()
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// scanRemote asks the device for its catalog listing. Items with malformed
// digests are dropped; the transfer path depends on digest integrity.
func (s *Scanner) scanRemote(ctx context.Context, dev models.Device) ([]models.MediaItem, error) {
	client, err := s.factory.ClientFor(dev)
	if err != nil {
		return nil, fmt.Errorf("no client for device %s: %w", dev.ID, err)
	}

	listCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	listed, err := client.ListMedia(listCtx)
	if err != nil {
		return nil, fmt.Errorf("remote listing failed for device %s: %w", dev.ID, err)
	}

	items := listed[:0:0]
	for _, it := range listed {
		if !validDigest(it.Digest) {
			logging.Warn().
				Str("device", dev.ID).
				Str("path", it.Path).
				Msg("Dropping remote item with malformed digest")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// titleFor derives a display title from a file path: base name without
// extension.
func titleFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// validDigest reports whether s is 64 lowercase hex chars.
func validDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
