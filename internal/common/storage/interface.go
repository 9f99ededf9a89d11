// Package storage provides the blob store used for checker scripts and
// archived submission logs. Local disk is the default; MinIO serves
// deployments that want the blobs off-box.
package storage

import (
	"context"
	"io"
)

// BlobStorage defines minimal object operations required by the judge core.
// It is intentionally small so local-disk and MinIO implementations stay
// interchangeable.
type BlobStorage interface {
	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// PutObject writes an object, replacing any existing one.
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error

	// DeleteObject removes an object. Deleting a missing object is not an
	// error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// StatObject returns metadata, or ErrObjectNotFound.
	StatObject(ctx context.Context, bucket, key string) (ObjectStat, error)
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ContentType string
}
