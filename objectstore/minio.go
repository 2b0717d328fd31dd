// Package objectstore implements the blob store client on an S3
// compatible service via minio-go.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/folio-sh/folio"
)

// Config holds the object store connection settings. PublicEndpoint,
// when set, is used only for building presigned URLs: runtime calls go
// to Endpoint (reachable from the server), while the signed URL must
// resolve from the browser's side of the network.
type Config struct {
	Endpoint       string `mapstructure:"endpoint" validate:"required"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
	AccessKey      string `mapstructure:"access_key" validate:"required"`
	SecretKey      string `mapstructure:"secret_key" validate:"required"`
	Bucket         string `mapstructure:"bucket" validate:"required"`
	UseSSL         bool   `mapstructure:"use_ssl"`
}

// MinioStore implements folio.ObjectStore.
type MinioStore struct {
	client  *minio.Client
	presign *minio.Client
	bucket  string
}

// NewMinioStore connects to the object store and ensures the bucket
// exists.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	opts := func(endpoint string) *minio.Options {
		return &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		}
	}

	client, err := minio.New(cfg.Endpoint, opts(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	presign := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		presign, err = minio.New(cfg.PublicEndpoint, opts(cfg.PublicEndpoint))
		if err != nil {
			return nil, fmt.Errorf("init presign client: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, presign: presign, bucket: cfg.Bucket}, nil
}

// Put uploads a blob with the declared content type.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Stat probes for blob existence through a metadata-only call.
// Returns folio.ErrNotFound if the blob is missing.
func (m *MinioStore) Stat(ctx context.Context, key string) error {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return fmt.Errorf("stat object %s: %w", key, folio.ErrNotFound)
		}
		return fmt.Errorf("stat object: %w", err)
	}
	return nil
}

// PresignGet generates a time-limited signed GET URL scoped to the
// object and to the response content type and disposition it will
// carry.
func (m *MinioStore) PresignGet(ctx context.Context, key string, opts folio.PresignOptions) (string, error) {
	reqParams := make(url.Values)
	if opts.ContentType != "" {
		reqParams.Set("response-content-type", opts.ContentType)
	}
	if opts.Disposition != "" {
		reqParams.Set("response-content-disposition",
			fmt.Sprintf("%s; filename=%q", opts.Disposition, opts.FileName))
	}

	u, err := m.presign.PresignedGetObject(ctx, m.bucket, key, opts.Expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

// Delete removes a blob. Removing a missing blob succeeds; the store's
// delete is idempotent.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
