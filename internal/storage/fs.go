package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Oxord/SceneFlow/internal/observability"
)

// FilesystemStorage implements ObjectStorage on a local directory. Used
// for local development and tests; production deployments use S3.
type FilesystemStorage struct {
	basePath string
	logger   observability.Logger
}

// NewFilesystemStorage creates a filesystem-backed object storage rooted
// at basePath, creating the directory when missing.
func NewFilesystemStorage(basePath string, logger observability.Logger) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base path %q: %w", basePath, err)
	}

	return &FilesystemStorage{
		basePath: basePath,
		logger:   logger.WithFields(observability.Fields{"component": "storage.filesystem", "base_path": basePath}),
	}, nil
}

// Put stores an object under basePath.
func (s *FilesystemStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("write object %q: %w", key, err)
	}

	s.logger.Debug(ctx, "object stored", observability.Fields{"key": key})
	return nil
}

// Get retrieves an object by key. Missing files map to ErrObjectNotFound.
func (s *FilesystemStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}

	return file, nil
}

// objectPath maps a key onto the base directory, refusing keys that
// would escape it.
func (s *FilesystemStorage) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}
