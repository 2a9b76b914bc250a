package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	BasePath    string
	Permissions os.FileMode
	CreateDirs  bool
}

// LocalStorage keeps templates under a base directory.
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
	createDirs  bool
	logger      *logrus.Logger
}

// NewLocalStorage creates filesystem storage rooted at cfg.BasePath.
func NewLocalStorage(cfg LocalConfig, logger *logrus.Logger) (*LocalStorage, error) {
	if err := validateLocalConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid local storage config: %w", err)
	}

	if cfg.CreateDirs {
		if err := os.MkdirAll(cfg.BasePath, cfg.Permissions); err != nil {
			return nil, fmt.Errorf("create base directory: %w", err)
		}
	}

	return &LocalStorage{
		basePath:    cfg.BasePath,
		permissions: cfg.Permissions,
		createDirs:  cfg.CreateDirs,
		logger:      logger,
	}, nil
}

// Save writes the object to disk, replacing any previous content.
func (l *LocalStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	fullPath := l.getFullPath(key)

	if l.createDirs {
		if err := os.MkdirAll(filepath.Dir(fullPath), l.permissions); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Get opens the object for reading.
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes the object; a missing object is not an error.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.getFullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return true, nil
}

// ValidateKey rejects empty keys and keys escaping the base directory.
func (l *LocalStorage) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("storage key cannot contain '..'")
	}
	if filepath.IsAbs(key) {
		return fmt.Errorf("storage key must be relative")
	}
	return nil
}

func (l *LocalStorage) getFullPath(key string) string {
	return filepath.Join(l.basePath, key)
}

func validateLocalConfig(cfg LocalConfig) error {
	if cfg.BasePath == "" {
		return fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(cfg.BasePath) {
		return fmt.Errorf("base path must be absolute")
	}
	return nil
}
