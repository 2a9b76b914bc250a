package storage

import (
	"context"
	"fmt"

	"report_catalog/internal/config"

	"github.com/sirupsen/logrus"
)

// StorageBuilder assembles storage from application configuration.
type StorageBuilder struct {
	config config.Config
	logger *logrus.Logger
}

// NewStorageBuilder creates a builder.
func NewStorageBuilder(cfg config.Config, logger *logrus.Logger) *StorageBuilder {
	return &StorageBuilder{config: cfg, logger: logger}
}

// Build creates the configured backend wrapped with middleware.
func (b *StorageBuilder) Build(ctx context.Context) (Storage, error) {
	switch b.config.Storage.Type {
	case StorageTypeS3:
		s3Storage, err := NewS3Storage(ctx, b.buildS3Config(), b.logger)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		return b.wrapWithMiddleware(s3Storage), nil

	case StorageTypeLocal:
		localStorage, err := NewLocalStorage(b.buildLocalConfig(), b.logger)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		return b.wrapWithMiddleware(localStorage), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", b.config.Storage.Type)
	}
}

func (b *StorageBuilder) buildS3Config() S3Config {
	return S3Config{
		Region:         b.config.Storage.S3.Region,
		Bucket:         b.config.Storage.S3.Bucket,
		Endpoint:       b.config.Storage.S3.Endpoint,
		AccessKey:      b.config.Storage.S3.AccessKey,
		SecretKey:      b.config.Storage.S3.SecretKey,
		ForcePathStyle: b.config.Storage.S3.Endpoint != "",
	}
}

func (b *StorageBuilder) buildLocalConfig() LocalConfig {
	return LocalConfig{
		BasePath:    b.config.Storage.BasePath,
		Permissions: 0o755,
		CreateDirs:  true,
	}
}

// wrapWithMiddleware layers validation over retry over logging.
func (b *StorageBuilder) wrapWithMiddleware(storage Storage) Storage {
	if b.logger != nil {
		storage = NewLoggingMiddleware(storage, b.logger)
		storage = NewRetryMiddleware(storage, DefaultMaxRetries, DefaultRetryDelay, b.logger)
	}
	return NewValidationMiddleware(storage)
}

// NewStorageFromConfig builds storage from configuration.
func NewStorageFromConfig(cfg config.Config, logger *logrus.Logger) (Storage, error) {
	return NewStorageBuilder(cfg, logger).Build(context.Background())
}
