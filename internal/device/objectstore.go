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
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mirrorwell/mirrorwell/internal/models"
)

// ObjectStoreClient serves cloud devices backed by S3-compatible storage.
//
// Layout contract: each media item is stored at <prefix>/<digest> with its
// catalog attributes in object user metadata. Keys under the prefix that do
// not look like a digest are ignored during listing, so a shared bucket can
// hold unrelated objects.
type ObjectStoreClient struct {
	client *minio.Client
	bucket string
	prefix string
}

// Object user metadata keys. minio canonicalizes these on the wire
// (X-Amz-Meta-*) and returns them title-cased.
const (
	metaTitle     = "Title"
	metaPath      = "Path"
	metaMediaType = "Media-Type"
	metaModified  = "Modified"
)

// NewObjectStoreClient connects to the device's S3 endpoint.
//
// The device's Host is the endpoint ("minio.example.com:9000"); StoragePath
// is "bucket" or "bucket/prefix"; APIKey carries "accessKey:secretKey".
// TLS is used unless the endpoint is a loopback or .local address.
func NewObjectStoreClient(dev models.Device) (*ObjectStoreClient, error) {
	bucket, prefix, _ := strings.Cut(strings.Trim(dev.StoragePath, "/"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: device %s has no bucket in storage path", models.ErrInvalidDevice, dev.ID)
	}

	accessKey, secretKey, found := strings.Cut(dev.APIKey, ":")
	if !found {
		return nil, fmt.Errorf("%w: device %s credential must be accessKey:secretKey", models.ErrInvalidDevice, dev.ID)
	}

	tr := &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(dev.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       !insecureEndpoint(dev.Host),
		Transport:    tr,
		Region:       "auto",
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store client: %w", err)
	}

	return &ObjectStoreClient{client: client, bucket: bucket, prefix: prefix}, nil
}

// insecureEndpoint reports whether the endpoint is plainly a LAN/dev target
// where TLS is not expected.
func insecureEndpoint(endpoint string) bool {
	host := endpoint
	if h, _, found := strings.Cut(endpoint, ":"); found {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".local")
}

// keyFor maps a content digest to its object key.
func (o *ObjectStoreClient) keyFor(digest string) string {
	if o.prefix == "" {
		return digest
	}
	return o.prefix + "/" + digest
}

// Probe verifies the bucket is reachable and exists.
func (o *ObjectStoreClient) Probe(ctx context.Context) (*models.AgentStatus, error) {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket probe failed: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", o.bucket)
	}
	return &models.AgentStatus{
		Status:    "online",
		MediaRoot: o.bucket + "/" + o.prefix,
	}, nil
}

// ListMedia lists objects under the prefix and rebuilds catalog entries from
// object metadata. Objects whose key is not a digest are skipped.
func (o *ObjectStoreClient) ListMedia(ctx context.Context) ([]models.MediaItem, error) {
	opts := minio.ListObjectsOptions{
		Prefix:       o.prefix,
		Recursive:    true,
		WithMetadata: true,
	}

	var items []models.MediaItem
	for obj := range o.client.ListObjects(ctx, o.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("object listing failed: %w", obj.Err)
		}
		digest := path.Base(obj.Key)
		if !looksLikeDigest(digest) {
			continue
		}
		item := models.MediaItem{
			Digest: digest,
			Title:  userMeta(obj.UserMetadata, metaTitle),
			Path:   userMeta(obj.UserMetadata, metaPath),
			Size:   obj.Size,
			Type:   models.MediaType(userMeta(obj.UserMetadata, metaMediaType)),
		}
		if item.Path == "" {
			item.Path = obj.Key
		}
		if ts := userMeta(obj.UserMetadata, metaModified); ts != "" {
			if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
				t := time.Unix(unix, 0).UTC()
				item.Modified = &t
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// userMeta reads a user metadata value, tolerating both the bare key and
// the X-Amz-Meta- wire form.
func userMeta(meta map[string]string, key string) string {
	if v, ok := meta[key]; ok {
		return v
	}
	return meta["X-Amz-Meta-"+key]
}

// looksLikeDigest reports whether s is a 64-char lowercase hex string.
func looksLikeDigest(s string) bool {
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

// Download opens a stream for the object holding the digest's bytes.
func (o *ObjectStoreClient) Download(ctx context.Context, digest string) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.keyFor(digest), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	// GetObject is lazy: force the first request so missing objects fail
	// here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, nil
}

// Upload stores the item at its digest key with catalog attributes as user
// metadata.
func (o *ObjectStoreClient) Upload(ctx context.Context, item models.MediaItem, r io.Reader, size int64) error {
	meta := map[string]string{
		metaTitle:     item.Title,
		metaPath:      item.Path,
		metaMediaType: string(item.Type),
	}
	if item.Modified != nil {
		meta[metaModified] = strconv.FormatInt(item.Modified.Unix(), 10)
	}

	_, err := o.client.PutObject(ctx, o.bucket, o.keyFor(item.Digest), r, size, minio.PutObjectOptions{
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}
