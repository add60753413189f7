package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Oxord/SceneFlow/internal/config"
	"github.com/Oxord/SceneFlow/internal/observability"
)

// S3Storage implements ObjectStorage against an S3-compatible backend.
// Path-style addressing is used so that custom endpoints (MinIO, Yandex
// Object Storage) work without virtual-host DNS.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	logger  observability.Logger
	metrics observability.Metrics
}

// NewS3Storage creates an S3 storage client bound to the configured
// bucket and verifies the bucket exists, creating it when missing.
func NewS3Storage(ctx context.Context, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*S3Storage, error) {
	awsCfg, err := buildAWSConfig(ctx, &cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = true
	})

	s := &S3Storage{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger.WithFields(observability.Fields{"component": "storage.s3", "bucket": cfg.Bucket}),
		metrics: metrics,
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.ensureBucketExists(bootCtx); err != nil {
		return nil, fmt.Errorf("verify bucket %q: %w", cfg.Bucket, err)
	}

	return s, nil
}

// Put stores an object in the configured bucket.
func (s *S3Storage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("storage_put", time.Since(start).Seconds())
	}()

	// Buffer the content so the SDK knows the size up front.
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, reader); err != nil {
		s.metrics.RecordError("storage_put", "read")
		return fmt.Errorf("read content: %w", err)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.metrics.RecordError("storage_put", "backend")
		s.logger.Error(ctx, "failed to put object", err, observability.Fields{"key": key})
		return fmt.Errorf("put object %q: %w", key, err)
	}

	s.logger.Debug(ctx, "object stored", observability.Fields{"key": key, "size": buf.Len()})
	return nil
}

// Get retrieves an object from the configured bucket. Missing keys map
// to ErrObjectNotFound.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("storage_get", time.Since(start).Seconds())
	}()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			s.logger.Debug(ctx, "object not found", observability.Fields{"key": key})
			return nil, ErrObjectNotFound
		}
		s.metrics.RecordError("storage_get", "backend")
		s.logger.Error(ctx, "failed to get object", err, observability.Fields{"key": key})
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}

	return result.Body, nil
}

// ensureBucketExists checks the configured bucket, creating it when the
// backend reports it missing.
func (s *S3Storage) ensureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var nf *s3types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("head bucket: %w", err)
	}

	s.logger.Info(ctx, "bucket does not exist, creating", nil)
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		var exists *s3types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create bucket: %w", err)
	}

	return nil
}

func buildAWSConfig(ctx context.Context, s3Cfg *config.S3Config) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if s3Cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(s3Cfg.Region))
	}

	if s3Cfg.AccessKeyID != "" && s3Cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3Cfg.AccessKeyID,
				s3Cfg.SecretAccessKey,
				"",
			),
		))
	}

	if s3Cfg.MaxRetries > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(s3Cfg.MaxRetries))
	}

	if s3Cfg.Timeout > 0 {
		optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
			Timeout: s3Cfg.Timeout,
		}))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}

// isNotFoundError checks if an error is an S3 not found error.
func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
