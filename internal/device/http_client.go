// Mirrorwell - Multi-Device Media Library Synchronization
// Copyright 2026 The Mirrorwell Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/mirrorwell/mirrorwell

package device

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// HTTPClient talks to a device running the Mirrorwell agent.
//
// Features:
//   - API key authentication via X-API-Key header
//   - Automatic retry with exponential backoff on HTTP 429 (1s, 2s, 4s, ...)
//   - Retry-After header honored when present
//   - Streaming download and multipart streaming upload
//
// Thread safety: safe for concurrent use; each request is independent.
type HTTPClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// HTTPClientOptions tunes an HTTPClient. Zero values fall back to the
// defaults documented on each field.
type HTTPClientOptions struct {
	// Timeout bounds each HTTP request end to end. Default 30s.
	// Download/upload requests are exempt: they are bounded by the
	// caller's context instead, since large transfers legitimately
	// outlive any fixed timeout.
	Timeout time.Duration

	// MaxRetries caps 429 retries. Default 5.
	MaxRetries int

	// RetryBaseDelay is the first backoff step, doubled per retry.
	// Default 1s.
	RetryBaseDelay time.Duration
}

// NewHTTPClient creates a client for the device's agent endpoint.
func NewHTTPClient(dev models.Device, opts HTTPClientOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &HTTPClient{
		baseURL:        dev.BaseURL(),
		apiKey:         dev.APIKey,
		client:         &http.Client{Timeout: opts.Timeout},
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// doRequestWithRateLimit performs an HTTP request with automatic rate limit
// handling. Implements exponential backoff for HTTP 429 responses; the
// context is used for cancellation during backoff waits.
func (c *HTTPClient) doRequestWithRateLimit(ctx context.Context, method, reqURL string, body io.Reader, contentType string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited. Non-seekable bodies cannot be replayed, so only
		// bodyless requests retry.
		_ = resp.Body.Close()
		if body != nil {
			return nil, fmt.Errorf("rate limited (HTTP 429) on non-retryable %s request", method)
		}

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// getJSON performs a GET and decodes the JSON body into result.
func (c *HTTPClient) getJSON(ctx context.Context, path string, result interface{}) error {
	resp, err := c.doRequestWithRateLimit(ctx, http.MethodGet, c.baseURL+path, nil, "")
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Probe checks agent connectivity via GET /status.
func (c *HTTPClient) Probe(ctx context.Context) (*models.AgentStatus, error) {
	var status models.AgentStatus
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListMedia retrieves the device's catalog via GET /media.
func (c *HTTPClient) ListMedia(ctx context.Context) ([]models.MediaItem, error) {
	var listing models.MediaListing
	if err := c.getJSON(ctx, "/media", &listing); err != nil {
		return nil, err
	}
	return listing.Items, nil
}

// Download opens a streaming GET /download/{digest}. The per-request client
// timeout is bypassed: the transfer is bounded by ctx.
func (c *HTTPClient) Download(ctx context.Context, digest string) (io.ReadCloser, error) {
	reqURL := c.baseURL + "/download/" + url.PathEscape(digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.streamingClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	default:
		body := readBodyForError(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))
	}
}

// Upload streams the item to POST /upload as multipart form data. The
// metadata part carries the item's catalog attributes; the file part carries
// the raw bytes. Streamed through an io.Pipe so the payload is never
// buffered in memory.
func (c *HTTPClient) Upload(ctx context.Context, item models.MediaItem, r io.Reader, size int64) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		metaJSON, err := json.Marshal(item)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("failed to encode metadata: %w", err))
			return
		}
		if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := mw.CreateFormFile("file", item.Title)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.streamingClient().Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// streamingClient returns a client without the fixed request timeout, for
// transfers whose duration depends on payload size. Cancellation comes from
// the request context.
func (c *HTTPClient) streamingClient() *http.Client {
	return &http.Client{Transport: c.client.Transport}
}
