// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package device

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// clientForServer builds an HTTPClient pointed at a test server.
func clientForServer(t *testing.T, srv *httptest.Server, apiKey string) *HTTPClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	dev := models.Device{
		ID:          "test-device",
		Name:        "Test",
		Type:        models.DeviceNAS,
		Host:        u.Hostname(),
		Port:        port,
		Protocol:    models.ProtocolHTTP,
		APIKey:      apiKey,
		StoragePath: "/media",
	}
	return NewHTTPClient(dev, HTTPClientOptions{
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: 10 * time.Millisecond,
	})
}

func TestProbeSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(models.AgentStatus{Status: "online", DeviceName: "nas"})
	}))
	defer srv.Close()

	status, err := clientForServer(t, srv, "secret-key").Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if status.Status != "online" || status.DeviceName != "nas" {
		t.Errorf("unexpected status: %+v", status)
	}
	if gotKey != "secret-key" {
		t.Errorf("X-API-Key = %q, want secret-key", gotKey)
	}
}

func TestProbeOfflineDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := clientForServer(t, srv, "").Probe(context.Background()); err == nil {
		t.Fatal("Probe() succeeded against a 503 endpoint")
	}
}

func TestListMedia(t *testing.T) {
	listing := models.MediaListing{
		Items: []models.MediaItem{
			{Digest: strings.Repeat("a", 64), Title: "movie", Path: "/media/movie.mkv", Size: 100, Type: models.MediaVideo},
			{Digest: strings.Repeat("b", 64), Title: "song", Path: "/media/song.mp3", Size: 10, Type: models.MediaAudio},
		},
		Count: 2,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(listing)
	}))
	defer srv.Close()

	items, err := clientForServer(t, srv, "").ListMedia(context.Background())
	if err != nil {
		t.Fatalf("ListMedia() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Digest != listing.Items[0].Digest || items[1].Size != 10 {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestDownloadStreamsBody(t *testing.T) {
	digest := strings.Repeat("c", 64)
	payload := []byte("media file bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/download/" + digest; r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	rc, err := clientForServer(t, srv, "").Download(context.Background(), digest)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("body = %q, want %q", got, payload)
	}
}

func TestDownloadMissingItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := clientForServer(t, srv, "").Download(context.Background(), strings.Repeat("d", 64))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestUploadMultipart(t *testing.T) {
	item := models.MediaItem{
		Digest: strings.Repeat("e", 64),
		Title:  "clip.mp4",
		Path:   "/media/clip.mp4",
		Size:   9,
		Type:   models.MediaVideo,
	}

	var gotMeta models.MediaItem
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipart parse: %v", err)
		}
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &gotMeta); err != nil {
			t.Fatalf("metadata decode: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := clientForServer(t, srv, "").Upload(context.Background(), item, strings.NewReader("file data"), 9)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if gotMeta.Digest != item.Digest || gotMeta.Title != item.Title {
		t.Errorf("metadata = %+v", gotMeta)
	}
	if string(gotFile) != "file data" {
		t.Errorf("file = %q", gotFile)
	}
}

func TestRateLimitRetryThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(models.AgentStatus{Status: "online"})
	}))
	defer srv.Close()

	if _, err := clientForServer(t, srv, "").Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := clientForServer(t, srv, "").Probe(context.Background())
	if err == nil {
		t.Fatal("Probe() succeeded despite persistent 429s")
	}
	// maxRetries=2 means initial attempt plus two retries.
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestRateLimitCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := clientForServer(t, srv, "").Probe(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}
