package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"taskquest/internal/config"
)

// FileCategory selects validation rules and the key prefix for uploads.
type FileCategory string

const (
	CategoryProofPhoto    FileCategory = "proof-photos"
	CategoryProofVideo    FileCategory = "proof-videos"
	CategoryProofDocument FileCategory = "proof-documents"
	CategoryVoiceMemo     FileCategory = "voice-memos"
)

var allowedMimeTypes = map[FileCategory]map[string]bool{
	CategoryProofPhoto: {
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
		"image/heic": true,
	},
	CategoryProofVideo: {
		"video/mp4":       true,
		"video/quicktime": true,
		"video/webm":      true,
	},
	CategoryProofDocument: {
		"application/pdf": true,
		"text/plain":      true,
	},
	CategoryVoiceMemo: {
		"audio/mpeg":  true,
		"audio/mp4":   true,
		"audio/wav":   true,
		"audio/webm":  true,
		"audio/x-m4a": true,
		"audio/ogg":   true,
	},
}

// ErrInvalidFileType is returned when the MIME type is not allowed for
// the category.
type ErrInvalidFileType struct {
	MimeType string
	Category FileCategory
}

func (e *ErrInvalidFileType) Error() string {
	return fmt.Sprintf("file type %q not allowed for %s", e.MimeType, e.Category)
}

// ErrFileTooLarge is returned when the upload exceeds the size limit.
type ErrFileTooLarge struct {
	Size  int64
	Limit int64
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// FileStore stores and retrieves uploaded files.
type FileStore interface {
	Upload(ctx context.Context, category FileCategory, fileHeader *multipart.FileHeader) (key string, err error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// S3Store is a FileStore backed by any S3-compatible service.
type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	maxBytes int64
}

// NewS3Store builds an S3Store from config.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		maxBytes: cfg.MaxUploadBytes,
	}, nil
}

// Upload validates and stores a multipart file, returning the object key.
func (s *S3Store) Upload(ctx context.Context, category FileCategory, fileHeader *multipart.FileHeader) (string, error) {
	mimeType := fileHeader.Header.Get("Content-Type")
	if allowed := allowedMimeTypes[category]; !allowed[strings.ToLower(mimeType)] {
		return "", &ErrInvalidFileType{MimeType: mimeType, Category: category}
	}
	if s.maxBytes > 0 && fileHeader.Size > s.maxBytes {
		return "", &ErrFileTooLarge{Size: fileHeader.Size, Limit: s.maxBytes}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(path.Ext(fileHeader.Filename))
	key := fmt.Sprintf("%s/%s%s", category, uuid.New().String(), ext)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        buf,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return key, nil
}

// Download streams an object's contents. The caller closes the reader.
func (s *S3Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object: %w", err)
	}
	return out.Body, nil
}

// PresignGet returns a temporary download URL for an object key.
func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}
	return req.URL, nil
}

// Delete removes an object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
