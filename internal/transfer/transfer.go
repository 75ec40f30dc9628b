// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

// Package transfer moves single media items between devices. A failed
// transfer is a Result carrying an error, not an error return: one bad file
// must never abort the surrounding sync operation.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
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

// Result is the outcome of one item transfer. Err is set on failure; Bytes
// counts payload bytes actually moved, which may be partial on failure.
type Result struct {
	Item     models.MediaItem
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Failed reports whether the transfer did not complete.
func (r Result) Failed() bool { return r.Err != nil }

// Executor copies items from a source device to a target device.
type Executor struct {
	factory   ClientFactory
	chunkSize int
	clock     func() time.Time
}

// NewExecutor creates an executor. chunkSize bounds copy buffer memory.
func NewExecutor(factory ClientFactory, chunkSize int) *Executor {
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	return &Executor{
		factory:   factory,
		chunkSize: chunkSize,
		clock:     time.Now,
	}
}

// Transfer moves one item from source to target. The returned Result is
// always usable; inspect Err for failure.
func (e *Executor) Transfer(ctx context.Context, source, target models.Device, item models.MediaItem) Result {
	start := e.clock()
	bytes, err := e.transfer(ctx, source, target, item)
	elapsed := e.clock().Sub(start)

	res := Result{Item: item, Bytes: bytes, Duration: elapsed, Err: err}
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failure").Inc()
		logging.Warn().
			Str("source", source.ID).
			Str("target", target.ID).
			Str("digest", item.Digest).
			Str("path", item.Path).
			Err(err).
			Msg("Transfer failed")
		return res
	}

	metrics.TransfersTotal.WithLabelValues("success").Inc()
	metrics.TransferBytesTotal.Add(float64(bytes))
	metrics.TransferDuration.Observe(elapsed.Seconds())
	logging.Debug().
		Str("source", source.ID).
		Str("target", target.ID).
		Str("digest", item.Digest).
		Int64("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("Transfer complete")
	return res
}

func (e *Executor) transfer(ctx context.Context, source, target models.Device, item models.MediaItem) (int64, error) {
	src, err := e.openSource(ctx, source, item)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if target.Local() {
		return e.writeLocal(ctx, target, item, src)
	}
	return e.writeRemote(ctx, target, item, src)
}

// openSource opens the item's byte stream on the source device.
func (e *Executor) openSource(ctx context.Context, source models.Device, item models.MediaItem) (io.ReadCloser, error) {
	if source.Local() {
		f, err := os.Open(item.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	client, err := e.factory.ClientFor(source)
	if err != nil {
		return nil, err
	}
	return client.Download(ctx, item.Digest)
}

// writeLocal copies the stream to the target's filesystem in chunk-sized
// blocks, verifying the digest along the way. The file lands under a temp
// name and is renamed on success, so a crashed transfer never leaves a
// half-written media file in the library.
func (e *Executor) writeLocal(ctx context.Context, target models.Device, item models.MediaItem, src io.Reader) (int64, error) {
	destPath := e.destPath(target, item)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".mirrorwell-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // no-op after successful rename
	}()

	h := sha256.New()
	written, err := e.copyChunked(ctx, io.MultiWriter(tmp, h), src)
	if err != nil {
		return written, err
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != item.Digest {
		return written, fmt.Errorf("digest mismatch: got %s, want %s", got, item.Digest)
	}

	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return written, fmt.Errorf("finalize destination file: %w", err)
	}
	return written, nil
}

// writeRemote streams the item to the target device's transport.
func (e *Executor) writeRemote(ctx context.Context, target models.Device, item models.MediaItem, src io.Reader) (int64, error) {
	client, err := e.factory.ClientFor(target)
	if err != nil {
		return 0, err
	}

	counted := &countingReader{r: src}
	if err := client.Upload(ctx, item, counted, item.Size); err != nil {
		return counted.n, err
	}
	return counted.n, nil
}

// copyChunked copies in chunk-sized blocks, checking for cancellation
// between blocks so a paused or aborted operation stops promptly.
func (e *Executor) copyChunked(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, e.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// destPath places the item directly under the target's storage path by its
// base file name; source directory layout is not mirrored. Path separators
// from foreign devices are normalized before taking the base.
func (e *Executor) destPath(target models.Device, item models.MediaItem) string {
	rel := filepath.Base(strings.ReplaceAll(item.Path, "\\", "/"))
	return filepath.Join(target.StoragePath, rel)
}

// countingReader tracks bytes consumed from the wrapped reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
