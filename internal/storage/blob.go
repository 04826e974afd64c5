package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore holds opaque files such as exported reports.
type BlobStore interface {
	// Put writes r under key and returns the canonical key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// URL returns a link a client can download key from.
	URL(ctx context.Context, key string) (string, error)
}
