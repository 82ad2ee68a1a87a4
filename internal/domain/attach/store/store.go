// Package store persists attachment blobs. The disk driver covers
// single-node deployments; the minio driver targets any S3-compatible
// object store.
package store

import (
	"context"
	"io"
)

// Driver identifiers supported by the attach domain.
const (
	DriverDisk  = "disk"
	DriverMinio = "minio"
)

// BlobStore is the persistence contract for attachment content.
type BlobStore interface {
	// Put streams a blob under the given key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Open returns the blob content for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the blob at key.
	Remove(ctx context.Context, key string) error
	// URL constructs the browser-accessible address for a key.
	URL(key string) string
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver     string
	Dir        string
	PublicBase string
	Minio      *MinioConfig
}

// MinioConfig captures S3-compatible connection options.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}
