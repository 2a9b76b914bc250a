package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// S3Config configures S3 storage.
type S3Config struct {
	Region         string
	Bucket         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Storage keeps templates in an S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	logger *logrus.Logger
}

// NewS3Storage creates S3 storage. Static credentials are used when an access
// key is configured, otherwise the default AWS credential chain applies.
func NewS3Storage(ctx context.Context, cfg S3Config, logger *logrus.Logger) (*S3Storage, error) {
	if err := validateS3Config(cfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Save uploads the object.
func (s *S3Storage) Save(ctx context.Context, key string, reader io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		return fmt.Errorf("put object to S3: %w", err)
	}
	return nil
}

// Get downloads the object.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get object from S3: %w", err)
	}
	return result.Body, nil
}

// Delete removes the object.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object from S3: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head object in S3: %w", err)
	}
	return true, nil
}

// ValidateKey checks S3 key constraints.
func (s *S3Storage) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("storage key too long: %d characters (max %d)", len(key), maxKeyLength)
	}
	return nil
}

func validateS3Config(cfg S3Config) error {
	if cfg.Region == "" {
		return fmt.Errorf("S3 region cannot be empty")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("S3 bucket cannot be empty")
	}
	if cfg.AccessKey != "" && cfg.SecretKey == "" {
		return fmt.Errorf("S3 secret key cannot be empty when access key is set")
	}
	return nil
}
