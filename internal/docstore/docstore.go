// Package docstore stores uploaded statement documents in Google Cloud
// Storage and hands their bytes back to the parse pipeline.
package docstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Store wraps a GCS bucket holding statement documents.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore connects to GCS using Application Default Credentials.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// NewStoreWithClient wires an existing client, mainly for tests.
func NewStoreWithClient(client *storage.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ObjectPath is the canonical location of a statement document.
func ObjectPath(profileID, statementID, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("statements/%s/%s%s", profileID, statementID, ext)
}

// Save streams a statement document into the bucket and returns its gs:// URI.
func (s *Store) Save(ctx context.Context, objectPath string, src io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Save: copying to object writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save: finalizing upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), nil
}

// Fetch downloads the document bytes behind a gs:// URI.
func (s *Store) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, objectPath, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening %s/%s: %w", bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Delete removes a stored document. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, uri string) error {
	bucket, objectPath, err := ParseURI(uri)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	err = s.client.Bucket(bucket).Object(objectPath).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("Delete: removing %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// ParseURI splits a gs://bucket/path URI into bucket and object path.
func ParseURI(uri string) (bucket, objectPath string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the base filename from a gs:// URI.
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
