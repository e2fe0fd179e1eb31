// Package media stores clan crest images on S3-compatible object storage.
// Like every secondary subsystem it is optional: when no endpoint is
// configured the upload surface reports itself disabled and nothing else
// is affected.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type Service struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects to the object store and ensures the crest bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &Service{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// UploadCrest stores a clan's crest under a stable per-clan key and returns
// the public URL to record on the clan. Re-uploading replaces the object.
func (s *Service) UploadCrest(ctx context.Context, clanID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}

	key := fmt.Sprintf("crests/%s%s", clanID, ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload crest for %s: %w", clanID, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// RemoveCrest deletes every stored crest variant for a clan.
func (s *Service) RemoveCrest(ctx context.Context, clanID string) error {
	for _, ext := range allowedContentTypes {
		key := fmt.Sprintf("crests/%s%s", clanID, ext)
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove crest %s: %w", key, err)
		}
	}
	return nil
}
