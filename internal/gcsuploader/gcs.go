package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore keeps objects in one GCS bucket. It assumes Application Default
// Credentials are configured.
type GCSStore struct {
	client        *storage.Client
	bucket        string
	uploadTimeout time.Duration
}

// NewGCSStore creates a store with its own storage client.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, uploadTimeout: 2 * time.Minute}, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Put uploads r as bucket/name.
func (s *GCSStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Put: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Put: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Fetch downloads the object at a gs:// URI. The bucket in the URI wins over
// the store's bucket.
func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Fetch: %s: %w", uri, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Delete removes the object at a gs:// URI.
func (s *GCSStore) Delete(ctx context.Context, uri string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	err = s.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("Delete: %s: %w", uri, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

var _ ObjectStore = (*GCSStore)(nil)
