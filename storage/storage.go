// Package storage provides the content-storage boundary. Photo binaries
// live in an S3-compatible bucket, the database only ever holds keys.
package storage

import (
	"context"
	"io"
)

// ObjectStorage is what the intake pipeline needs from a content store.
// Implemented by Client for R2/S3 and by in-memory fakes in tests.
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}
