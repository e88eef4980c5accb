package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lecturehub/backend/internal/config"
)

// ============================================================================
// Streaming Client (minio-go) - reads, PDF writes, presigned URLs
// ============================================================================

// Client provides access to S3-compatible object storage (MinIO).
type Client struct {
	client *minio.Client
	bucket string
}

// Config holds the configuration for the streaming storage client.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New creates a new streaming storage client.
func New(cfg *Config) (*Client, error) {
	// Strip protocol prefix if present (minio-go expects host:port)
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// GetObject retrieves an entire object from storage.
func (c *Client) GetObject(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return obj, &ObjectInfo{
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        info.ETag,
	}, nil
}

// ObjectExists checks if an object exists in storage.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence %s: %w", key, err)
	}
	return true, nil
}

// PutObject uploads an object to storage.
func (c *Client) PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, reader, size, opts)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

// DeleteObject removes an object from storage.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PresignedGetURL returns a time-limited download URL for an object.
func (c *Client) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
		}
	}

	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Ping checks if the storage is accessible by verifying bucket exists.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

// PDFKey returns the storage key for a lecture's exported PDF.
func PDFKey(lectureID string) string {
	return fmt.Sprintf("lectures/%s/notes.pdf", lectureID)
}

// ============================================================================
// S3Uploader (aws-sdk-go-v2) - audio uploads with deduplication
// ============================================================================

// LectureMetadata identifies an uploaded recording for deduplication.
type LectureMetadata struct {
	Title    string `json:"title"`
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

// UploadResult contains the result of an upload operation
type UploadResult struct {
	StorageKey   string `json:"storage_key"`
	IdentityHash string `json:"identity_hash"`
	IsNew        bool   `json:"is_new"` // false if file already existed (deduplicated)
}

// Uploader stores lecture audio.
type Uploader interface {
	Upload(ctx context.Context, reader io.Reader, contentLength int64, metadata LectureMetadata) (*UploadResult, error)
	Exists(ctx context.Context, identityHash string) (bool, error)
	Delete(ctx context.Context, identityHash string) error
}

// S3Uploader implements Uploader using S3-compatible storage (AWS S3 or MinIO)
type S3Uploader struct {
	client *s3.Client
	bucket string
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader creates an uploader against the configured MinIO/S3 endpoint.
func NewS3Uploader(cfg *config.Config) (*S3Uploader, error) {
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		UsePathStyle: cfg.S3UsePathStyle, // Required for MinIO
	}

	if cfg.MinioEndpoint != "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		endpoint := cfg.MinioEndpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = scheme + "://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}

	client := s3.New(opts)

	return &S3Uploader{
		client: client,
		bucket: cfg.MinioBucket,
	}, nil
}

// GenerateIdentityHash creates a stable hash for audio deduplication from
// normalized title, owner, and original filename.
func GenerateIdentityHash(metadata LectureMetadata) string {
	normalizedTitle := strings.ToLower(strings.TrimSpace(metadata.Title))
	normalizedFilename := strings.ToLower(strings.TrimSpace(metadata.Filename))

	hashInput := fmt.Sprintf("%s|%s|%s", normalizedTitle, metadata.UserID, normalizedFilename)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

// audioKey returns the S3 key for a given identity hash, preserving the
// original file extension so downstream transcription sees the right format.
func (s *S3Uploader) audioKey(identityHash, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".mp3"
	}
	return fmt.Sprintf("audio/%s/recording%s", identityHash, ext)
}

// metadataKey returns the S3 key for metadata JSON
func (s *S3Uploader) metadataKey(identityHash string) string {
	return fmt.Sprintf("audio/%s/metadata.json", identityHash)
}

// Upload stores lecture audio from reader, skipping the write when the same
// recording (by identity hash) is already present.
func (s *S3Uploader) Upload(ctx context.Context, reader io.Reader, contentLength int64, metadata LectureMetadata) (*UploadResult, error) {
	identityHash := GenerateIdentityHash(metadata)
	audioKey := s.audioKey(identityHash, metadata.Filename)

	exists, err := s.exists(ctx, audioKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check existence: %w", err)
	}

	if exists {
		return &UploadResult{
			StorageKey:   audioKey,
			IdentityHash: identityHash,
			IsNew:        false,
		}, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(audioKey),
		Body:          reader,
		ContentLength: aws.Int64(contentLength),
		ContentType:   aws.String(contentTypeFor(metadata.Filename)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaKey := s.metadataKey(identityHash)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(metaKey),
		Body:        strings.NewReader(string(metadataJSON)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		// Try to clean up the audio file if metadata upload fails
		_ = s.deleteKey(ctx, audioKey)
		return nil, fmt.Errorf("failed to upload metadata: %w", err)
	}

	return &UploadResult{
		StorageKey:   audioKey,
		IdentityHash: identityHash,
		IsNew:        true,
	}, nil
}

// Exists checks whether any audio object for the identity hash is stored.
func (s *S3Uploader) Exists(ctx context.Context, identityHash string) (bool, error) {
	return s.exists(ctx, s.metadataKey(identityHash))
}

func (s *S3Uploader) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) || isNoSuchKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

// Delete removes stored audio and its metadata.
func (s *S3Uploader) Delete(ctx context.Context, identityHash string) error {
	// The audio extension is recorded in the metadata JSON; without it we
	// still remove the common variants.
	for _, ext := range []string{".mp3", ".m4a", ".wav", ".ogg", ".webm"} {
		key := fmt.Sprintf("audio/%s/recording%s", identityHash, ext)
		if err := s.deleteKey(ctx, key); err != nil {
			return err
		}
	}
	return s.deleteKey(ctx, s.metadataKey(identityHash))
}

func (s *S3Uploader) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}

// isNotFoundError checks if the error indicates the object was not found
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "not found") ||
		strings.Contains(err.Error(), "404")
}

// isNoSuchKeyError checks if the error indicates NoSuchKey
func isNoSuchKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
