package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("blob not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// BlobStore persists immutable binaries keyed by name: templates, generated
// documents, avatars, official photos. Put must complete before any metadata
// row referencing the key is written.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
