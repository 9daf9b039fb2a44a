// Package storage holds the object store used for library backups (S3-compatible).
// Objects are streamed; nothing is staged on local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the requested key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Storage is a small S3-compatible object storage client.
type Storage interface {
	// Put uploads an object under key from r.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens the object for reading. Callers close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
}
