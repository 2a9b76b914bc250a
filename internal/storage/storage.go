package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

const (
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second

	maxKeyLength = 1024
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// Storage keeps report templates addressed by key.
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ValidateKey(key string) error
}
