package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore uploads training archives to MinIO/S3 compatible storage and
// hands back presigned retrieval URLs the remote trainer can fetch from.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// MinioOptions configures the S3-compatible archive store.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// URLExpiry bounds presigned URL validity. Remote training can sit in a
	// queue for a while, so default generously.
	URLExpiry time.Duration
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}
	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinioStore{client: client, bucket: opts.Bucket, expiry: expiry}, nil
}

// Upload stores the object under a fresh per-upload key and returns a
// presigned GET URL for it. Every training job uploads an archive with the
// same logical name, so keys are namespaced to keep a later job from
// overwriting an archive whose presigned URL the remote trainer has not
// fetched yet.
func (m *MinioStore) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := objectKey(filename)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign get: %w", err)
	}
	return url.String(), nil
}

// objectKey namespaces an object name with a fresh prefix, mirroring how the
// filesystem backend keys its writes.
func objectKey(filename string) string {
	return uuid.NewString() + "/" + filename
}
