package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client implements ClientInterface on top of minio-go.
type Client struct {
	client *minio.Client
	config Config
}

// NewClient creates a MinIO client from config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// ensureBucket creates the bucket if it does not exist yet.
func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: c.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// PutObject uploads an object.
func (c *Client) PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64) error {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	_, err := c.client.PutObject(ctx, bucket, object, data, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

// GetObject downloads an object.
func (c *Client) GetObject(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	return data, nil
}

// ListObjects returns objects under a prefix, newest first.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	objectCh := c.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var objects []ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects failed: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
			Size:         object.Size,
		})
	}

	// Newest first
	for i, j := 0, len(objects)-1; i < j; i, j = i+1, j-1 {
		objects[i], objects[j] = objects[j], objects[i]
	}

	return objects, nil
}

// RemoveObject deletes an object.
func (c *Client) RemoveObject(ctx context.Context, bucket, object string) error {
	err := c.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object failed: %w", err)
	}
	return nil
}

// IsNotExist reports whether err means the requested object does not
// exist in the bucket.
func IsNotExist(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}

// ConfigFromEnv builds a Config from MINIO_* environment variables,
// matching the deployment layout the services run under.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:        getenv("MINIO_ENDPOINT"),
		AccessKeyID:     getenv("MINIO_ACCESS_KEY"),
		SecretAccessKey: getenv("MINIO_SECRET_KEY"),
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "minio:9000"
	}
	if cfg.AccessKeyID == "" {
		cfg.AccessKeyID = "minioadmin"
	}
	if cfg.SecretAccessKey == "" {
		cfg.SecretAccessKey = "minioadmin"
	}
	return cfg
}
