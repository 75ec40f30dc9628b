// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mirrorwell/mirrorwell/internal/device"
	"github.com/mirrorwell/mirrorwell/internal/models"
)

// fakeRemote records uploads and serves downloads from memory.
type fakeRemote struct {
	content   map[string][]byte // digest -> bytes
	uploads   map[string][]byte
	uploadErr error
}

func (f *fakeRemote) Probe(context.Context) (*models.AgentStatus, error) {
	return &models.AgentStatus{Status: "online"}, nil
}

func (f *fakeRemote) ListMedia(context.Context) ([]models.MediaItem, error) { return nil, nil }

func (f *fakeRemote) Download(_ context.Context, digest string) (io.ReadCloser, error) {
	data, ok := f.content[digest]
	if !ok {
		return nil, device.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeRemote) Upload(_ context.Context, item models.MediaItem, r io.Reader, _ int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[item.Digest] = data
	return nil
}

type fakeFactory struct {
	remote *fakeRemote
}

func (f *fakeFactory) ClientFor(models.Device) (device.Client, error) {
	return f.remote, nil
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func localDev(t *testing.T, id, path string) models.Device {
	t.Helper()
	d, err := models.NewDevice(id, id, models.DeviceWorkstation, "", 0, models.ProtocolLocal, path)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func remoteDev(t *testing.T, id string) models.Device {
	t.Helper()
	d, err := models.NewDevice(id, id, models.DeviceNAS, "10.0.0.5", 8080, models.ProtocolHTTP, "/media")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestLocalToLocalTransfer(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	srcPath := filepath.Join(srcDir, "film.mkv")
	if err := os.WriteFile(srcPath, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	item := models.MediaItem{Digest: digestOf(payload), Title: "film", Path: srcPath, Size: int64(len(payload)), Type: models.MediaVideo}
	e := NewExecutor(nil, 512) // chunk smaller than payload forces multiple blocks

	res := e.Transfer(context.Background(), localDev(t, "pc1", srcDir), localDev(t, "pc2", dstDir), item)
	if res.Failed() {
		t.Fatalf("Transfer() failed: %v", res.Err)
	}
	if res.Bytes != int64(len(payload)) {
		t.Errorf("bytes = %d, want %d", res.Bytes, len(payload))
	}

	got, err := os.ReadFile(filepath.Join(dstDir, "film.mkv"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("destination content differs from source")
	}

	// No stray temp files left behind.
	entries, _ := os.ReadDir(dstDir)
	if len(entries) != 1 {
		t.Errorf("destination dir has %d entries, want 1", len(entries))
	}
}

func TestLocalTransferDigestMismatch(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	srcPath := filepath.Join(srcDir, "film.mkv")
	if err := os.WriteFile(srcPath, []byte("actual bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Catalog claims different bytes than the file now holds.
	item := models.MediaItem{Digest: digestOf([]byte("stale bytes")), Title: "film", Path: srcPath, Size: 12}
	e := NewExecutor(nil, 1<<10)

	res := e.Transfer(context.Background(), localDev(t, "pc1", srcDir), localDev(t, "pc2", dstDir), item)
	if !res.Failed() {
		t.Fatal("corrupted transfer reported success")
	}
	// The mismatched file must not land in the library.
	if _, err := os.Stat(filepath.Join(dstDir, "film.mkv")); !os.IsNotExist(err) {
		t.Error("mismatched file was finalized")
	}
}

func TestMissingSourceFileIsResultNotPanic(t *testing.T) {
	dstDir := t.TempDir()
	item := models.MediaItem{Digest: digestOf([]byte("x")), Title: "gone", Path: "/nonexistent/gone.mkv", Size: 1}
	e := NewExecutor(nil, 1<<10)

	res := e.Transfer(context.Background(), localDev(t, "pc1", t.TempDir()), localDev(t, "pc2", dstDir), item)
	if !res.Failed() {
		t.Fatal("missing source reported success")
	}
	if res.Bytes != 0 {
		t.Errorf("bytes = %d, want 0", res.Bytes)
	}
}

func TestRemoteToLocalTransfer(t *testing.T) {
	payload := []byte("remote media bytes")
	digest := digestOf(payload)
	factory := &fakeFactory{remote: &fakeRemote{content: map[string][]byte{digest: payload}}}

	dstDir := t.TempDir()
	item := models.MediaItem{Digest: digest, Title: "clip", Path: "/media/clip.mp4", Size: int64(len(payload)), Type: models.MediaVideo}
	e := NewExecutor(factory, 4)

	res := e.Transfer(context.Background(), remoteDev(t, "nas1"), localDev(t, "pc1", dstDir), item)
	if res.Failed() {
		t.Fatalf("Transfer() failed: %v", res.Err)
	}
	got, err := os.ReadFile(filepath.Join(dstDir, "clip.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded content differs")
	}
}

func TestLocalToRemoteTransfer(t *testing.T) {
	srcDir := t.TempDir()
	payload := []byte("upload me")
	srcPath := filepath.Join(srcDir, "song.mp3")
	if err := os.WriteFile(srcPath, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	remote := &fakeRemote{}
	e := NewExecutor(&fakeFactory{remote: remote}, 1<<10)
	item := models.MediaItem{Digest: digestOf(payload), Title: "song", Path: srcPath, Size: int64(len(payload)), Type: models.MediaAudio}

	res := e.Transfer(context.Background(), localDev(t, "pc1", srcDir), remoteDev(t, "nas1"), item)
	if res.Failed() {
		t.Fatalf("Transfer() failed: %v", res.Err)
	}
	if !bytes.Equal(remote.uploads[item.Digest], payload) {
		t.Error("uploaded content differs")
	}
	if res.Bytes != int64(len(payload)) {
		t.Errorf("bytes = %d", res.Bytes)
	}
}

func TestUploadFailureIsResult(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "song.mp3")
	if err := os.WriteFile(srcPath, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	remote := &fakeRemote{uploadErr: errors.New("disk full")}
	e := NewExecutor(&fakeFactory{remote: remote}, 1<<10)
	item := models.MediaItem{Digest: digestOf([]byte("data")), Title: "song", Path: srcPath, Size: 4}

	res := e.Transfer(context.Background(), localDev(t, "pc1", srcDir), remoteDev(t, "nas1"), item)
	if !res.Failed() {
		t.Fatal("upload failure reported success")
	}
}

func TestTransferCancelled(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	payload := bytes.Repeat([]byte("a"), 1<<16)
	srcPath := filepath.Join(srcDir, "big.mkv")
	if err := os.WriteFile(srcPath, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := models.MediaItem{Digest: digestOf(payload), Title: "big", Path: srcPath, Size: int64(len(payload))}
	e := NewExecutor(nil, 1<<10)

	res := e.Transfer(ctx, localDev(t, "pc1", srcDir), localDev(t, "pc2", dstDir), item)
	if !res.Failed() || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("cancelled transfer result = %v", res.Err)
	}
}
