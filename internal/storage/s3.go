// Package storage uploads avatar and cover images to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/videotube/backend/internal/config"
)

// ErrUnsupportedMedia is returned for uploads that are not images.
var ErrUnsupportedMedia = errors.New("unsupported media type")

const sniffLen = 512

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Storage writes profile media as public-read objects.
type S3Storage struct {
	uploader objectUploader
	bucket   string
	baseURL  string
}

// NewS3Storage configures an uploader for cfg. A custom endpoint (MinIO,
// LocalStack) switches to path-style addressing.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Storage(manager.NewUploader(client), cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Storage(uploader objectUploader, bucket, baseURL string) *S3Storage {
	return &S3Storage{
		uploader: uploader,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

// Save uploads r under key and returns its public location. When the
// declared content type is missing or generic it is sniffed from the data;
// anything that is not an image is rejected with ErrUnsupportedMedia.
func (s *S3Storage) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("s3 storage: empty key")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload %s: %w", key, err)
	}
	head = head[:n]

	contentType = mediaType(contentType, head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        io.MultiReader(bytes.NewReader(head), r),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	return PublicURL(s.baseURL, key), nil
}

func mediaType(declared string, head []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "" || declared == "application/octet-stream" {
		return http.DetectContentType(head)
	}
	return declared
}

// ObjectKey builds a collision-free key for a user's media file, keeping the
// lower-cased file extension.
func ObjectKey(kind, userID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(kind, userID, uuid.NewString()+ext)
}

// PublicURL joins the public base URL and key. Without a base URL the key is returned as is.
func PublicURL(baseURL, key string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return key
	}
	return baseURL + "/" + strings.TrimLeft(key, "/")
}
