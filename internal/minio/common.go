// Package minio wraps object storage access for the guardian services.
package minio

import (
	"context"
	"io"
	"time"
)

// Config for the MinIO client.
type Config struct {
	Endpoint        string // e.g. "minio:9000" (without http://)
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string // defaults to "us-east-1"
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ClientInterface is the object storage contract the services depend on.
type ClientInterface interface {
	// PutObject uploads an object.
	PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64) error

	// GetObject downloads an object.
	GetObject(ctx context.Context, bucket, object string) ([]byte, error)

	// ListObjects returns objects under a prefix, newest first.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// RemoveObject deletes an object. Removing a missing object is not an error.
	RemoveObject(ctx context.Context, bucket, object string) error
}
