package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is one blob to store. Filename, when set, becomes the attachment
// name browsers save the download under.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

func (o Object) disposition() string {
	if o.Filename == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": o.Filename})
}

// ObjectStore holds voiceover audio and collection exports.
type ObjectStore interface {
	Put(ctx context.Context, obj Object) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage connects to MinIO and creates the bucket when missing.
func NewMinIOStorage(ctx context.Context, cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio: no endpoint configured")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOStorage{client: mc, bucket: cfg.Bucket}, nil
}

func (s *MinIOStorage) Put(ctx context.Context, obj Object) error {
	_, err := s.client.PutObject(ctx, s.bucket, obj.Key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType:        obj.ContentType,
		ContentDisposition: obj.disposition(),
	})
	return err
}

func (s *MinIOStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	o, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	// GetObject is lazy; Stat surfaces a missing key now instead of on first Read.
	if _, err := o.Stat(); err != nil {
		o.Close()
		return nil, notFound(err)
	}
	return o, nil
}

// SignedURL checks that key exists and returns a presigned GET link to it.
func (s *MinIOStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return "", notFound(err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func notFound(err error) error {
	if resp := minio.ToErrorResponse(err); resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}
	return err
}
