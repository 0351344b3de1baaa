package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"estate-backend/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const imageCacheControl = "public, max-age=31536000"

var ErrInvalidImageURL = errors.New("invalid image url")

// BlobStorage stores project images and turns stored references into URLs a
// browser can load.
type BlobStorage interface {
	Upload(ctx context.Context, data []byte, fileName, contentType string) (string, error)
	ResolveURL(ctx context.Context, storagePath string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, storagePath string) error
}

// S3Storage is a BlobStorage backed by any S3-compatible object store.
type S3Storage struct {
	client        *s3.Client
	presign       *s3.PresignClient
	bucket        string
	folder        string
	publicBaseURL string
	now           func() time.Time
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StorageWithClient(client, cfg), nil
}

// NewS3StorageWithClient wraps an already configured client.
func NewS3StorageWithClient(client *s3.Client, cfg config.StorageConfig) *S3Storage {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = config.DefaultBucket
	}
	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = config.DefaultFolder
	}

	return &S3Storage{
		client:        client,
		presign:       s3.NewPresignClient(client),
		bucket:        bucket,
		folder:        folder,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
	}
}

// Upload writes data under the image folder and returns the object key.
func (s *S3Storage) Upload(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	key := s.folder + "/" + s.objectName(fileName)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String(imageCacheControl),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// objectName is "<unix millis>-<16 hex chars><ext>".
func (s *S3Storage) objectName(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" || ext == "." {
		ext = ".jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix, ext)
}

// ResolveURL returns absolute URLs unchanged and turns storage paths into a
// public URL or a presigned GET valid for expiry.
func (s *S3Storage) ResolveURL(ctx context.Context, storagePath string, expiry time.Duration) (string, error) {
	if IsAbsoluteURL(storagePath) {
		if !validAbsoluteURL(storagePath) {
			return "", fmt.Errorf("%w: %q", ErrInvalidImageURL, storagePath)
		}
		return storagePath, nil
	}

	key := s.objectKey(storagePath)
	if key == "" {
		return "", fmt.Errorf("%w: empty storage path", ErrInvalidImageURL)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Storage) Remove(ctx context.Context, storagePath string) error {
	key := s.objectKey(storagePath)
	if key == "" {
		return nil
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// StoragePathFromURL extracts "<folder>/<name>" from a URL pointing into the
// bucket, e.g. https://host/storage/v1/object/public/project-images/projects/a.jpg.
func (s *S3Storage) StoragePathFromURL(raw string) (string, bool) {
	return StoragePathFromURL(raw, s.bucket, s.folder)
}

func StoragePathFromURL(raw, bucket, folder string) (string, bool) {
	if !IsAbsoluteURL(raw) {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	marker := "/" + bucket + "/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(u.Path[idx+len(marker):], "/")
	if !strings.HasPrefix(rest, folder+"/") || rest == folder+"/" {
		return "", false
	}
	return rest, true
}

// objectKey normalizes a stored reference into a bucket key.
func (s *S3Storage) objectKey(storagePath string) string {
	key := strings.TrimLeft(strings.TrimSpace(storagePath), "/")
	key = strings.TrimPrefix(key, s.bucket+"/")
	if key != "" && !strings.Contains(key, "/") {
		key = s.folder + "/" + key
	}
	return key
}

func IsAbsoluteURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func validAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Scheme != "" && u.Host != ""
}
