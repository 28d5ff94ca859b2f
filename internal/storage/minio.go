package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("object not found")

type Storage struct {
	client *minio.Client
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Buckets are created on startup when missing.
	Buckets []string
}

func NewStorage(ctx context.Context, config *Config) (*Storage, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	s := &Storage{
		client: client,
	}

	for _, bucket := range config.Buckets {
		if err := s.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Storage) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (s *Storage) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetObject reads the whole object. A missing key yields ErrObjectNotFound.
func (s *Storage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(bucket, key, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return nil, mapError(bucket, key, err)
	}
	return buf.Bytes(), nil
}

// RemoveObject deletes the object. Removing an absent key is not an error.
func (s *Storage) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Storage) PresignedGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	presignedUrl, err := s.client.PresignedGetObject(
		ctx,
		bucket,
		key,
		expiry,
		url.Values{},
	)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}

	return presignedUrl.String(), nil
}

func mapError(bucket, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	return fmt.Errorf("failed to get %s/%s: %w", bucket, key, err)
}
