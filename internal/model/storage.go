package model

import (
	"context"
	"io"
)

// KeyValueStore is the durable local storage of the client. Writes are
// synchronous: when Put or Delete returns nil the change is on disk.
type KeyValueStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// ObjectStorage uploads files to an S3 compatible bucket.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
