// Package storage wraps an S3-compatible object store (minio-go) for
// knowledge base files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned when a key does not exist
var ErrObjectNotFound = errors.New("object not found")

// Disposition selects how browsers handle a presigned download
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

// Client stores objects in one bucket
type Client struct {
	minio      *minio.Client
	bucket     string
	presignTTL time.Duration
	logger     *zap.Logger
}

// New creates a Client from configuration. No network call is made.
func New(cfg config.StorageConfig, logger *zap.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Client{
		minio:      mc,
		bucket:     cfg.Bucket,
		presignTTL: ttl,
		logger:     logger,
	}, nil
}

// EnsureBucket creates the bucket if it is missing
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	c.logger.Info("created storage bucket", zap.String("bucket", c.bucket))
	return nil
}

// Put uploads size bytes from r under key
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.minio.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Get opens the object at key. The caller closes the reader.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.translate(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, c.translate(key, err)
	}
	return obj, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.minio.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	objects := c.minio.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	deleted := 0
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		if err := c.Delete(ctx, obj.Key); err != nil {
			return err
		}
		deleted++
	}

	c.logger.Info("deleted storage prefix",
		zap.String("prefix", prefix),
		zap.Int("objects", deleted))
	return nil
}

// PresignGet returns a time limited GET URL. filename and contentType are
// echoed back by the store as response headers.
func (c *Client) PresignGet(ctx context.Context, key, filename, contentType string, disposition Disposition) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(disposition, filename))
	if contentType != "" {
		params.Set("response-content-type", contentType)
	}

	u, err := c.minio.PresignedGetObject(ctx, c.bucket, key, c.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ContentDisposition builds a header value that is safe for any filename
func ContentDisposition(disposition Disposition, filename string) string {
	if disposition != DispositionInline {
		disposition = DispositionAttachment
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return string(disposition)
	}
	if v := mime.FormatMediaType(string(disposition), map[string]string{"filename": filename}); v != "" {
		return v
	}
	return string(disposition)
}

func (c *Client) translate(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}
