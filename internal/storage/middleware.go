package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware logs storage operations.
type LoggingMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewLoggingMiddleware wraps storage with operation logging.
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{storage: storage, logger: logger}
}

func (m *LoggingMiddleware) observe(operation, key string, start time.Time, err error) {
	logger := m.logger.WithFields(logrus.Fields{
		"operation": operation,
		"key":       key,
		"duration":  time.Since(start),
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.WithError(err).Error("Storage operation failed")
		return
	}
	logger.Debug("Storage operation completed")
}

func (m *LoggingMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	start := time.Now()
	err := m.storage.Save(ctx, key, reader)
	m.observe("save", key, start, err)
	return err
}

func (m *LoggingMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	reader, err := m.storage.Get(ctx, key)
	m.observe("get", key, start, err)
	return reader, err
}

func (m *LoggingMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.storage.Delete(ctx, key)
	m.observe("delete", key, start, err)
	return err
}

func (m *LoggingMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	return m.storage.Exists(ctx, key)
}

func (m *LoggingMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

// RetryMiddleware retries failed storage operations.
type RetryMiddleware struct {
	storage    Storage
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewRetryMiddleware wraps storage with retries.
func NewRetryMiddleware(storage Storage, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) Storage {
	return &RetryMiddleware{
		storage:    storage,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Save retries only when the payload can be rewound.
func (m *RetryMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return m.storage.Save(ctx, key, reader)
	}
	return m.retryOperation(ctx, "save", func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind payload: %w", err)
		}
		return m.storage.Save(ctx, key, reader)
	})
}

func (m *RetryMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var result io.ReadCloser
	err := m.retryOperation(ctx, "get", func() error {
		var err error
		result, err = m.storage.Get(ctx, key)
		return err
	})
	return result, err
}

func (m *RetryMiddleware) Delete(ctx context.Context, key string) error {
	return m.retryOperation(ctx, "delete", func() error {
		return m.storage.Delete(ctx, key)
	})
}

func (m *RetryMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := m.retryOperation(ctx, "exists", func() error {
		var err error
		exists, err = m.storage.Exists(ctx, key)
		return err
	})
	return exists, err
}

func (m *RetryMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

func (m *RetryMiddleware) retryOperation(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			break
		}

		if attempt < m.maxRetries {
			m.logger.WithFields(logrus.Fields{
				"operation":   operation,
				"attempt":     attempt + 1,
				"max_retries": m.maxRetries,
			}).WithError(lastErr).Warn("Retrying storage operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}

	return lastErr
}

func shouldRetry(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// ValidationMiddleware validates keys before delegating.
type ValidationMiddleware struct {
	storage Storage
}

// NewValidationMiddleware wraps storage with key validation.
func NewValidationMiddleware(storage Storage) Storage {
	return &ValidationMiddleware{storage: storage}
}

func (m *ValidationMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Save(ctx, key, reader)
}

func (m *ValidationMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.storage.Get(ctx, key)
}

func (m *ValidationMiddleware) Delete(ctx context.Context, key string) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Delete(ctx, key)
}

func (m *ValidationMiddleware) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return false, err
	}
	return m.storage.Exists(ctx, key)
}

func (m *ValidationMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}
