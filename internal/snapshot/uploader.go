// Package snapshot uploads database snapshots to S3-compatible storage and
// issues pre-signed download URLs. With no bucket configured the
// NoopUploader is used and the system keeps snapshots local only.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/orbit/internal/config"
)

// ErrNotConfigured is returned when S3 snapshot storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

// Uploader uploads snapshots and generates pre-signed download URLs.
type Uploader interface {
	// Upload uploads the snapshot file at filePath.
	Upload(ctx context.Context, filePath string) error

	// PresignedURL returns a pre-signed URL for the latest uploaded snapshot.
	// Returns ErrNotConfigured when S3 is not configured.
	PresignedURL(ctx context.Context) (url string, expiry time.Time, err error)
}

// s3Client is the subset of *minio.Client used by S3Uploader.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads snapshots to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	key       string
	urlExpiry time.Duration
}

// Upload uploads the snapshot file at filePath, replacing the previous one.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	if err := u.client.FPutObject(ctx, u.bucket, u.key, filePath); err != nil {
		return fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the snapshot.
func (u *S3Uploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, u.key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(u.urlExpiry), nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload does nothing.
func (u *NoopUploader) Upload(ctx context.Context, filePath string) error {
	return nil
}

// PresignedURL always returns ErrNotConfigured.
func (u *NoopUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the Uploader for cfg. name namespaces the object key
// so several deployments can share a bucket.
func NewUploader(cfg config.SnapshotStorageConfig, name string) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		key:       objectKey(name),
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http(s):// prefix from endpoint. An explicit
// scheme overrides useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the S3 object key for a snapshot.
// Convention: {name}/snapshot/current.db
func objectKey(name string) string {
	if name == "" {
		name = "orbit"
	}
	return name + "/snapshot/current.db"
}
