package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds the maximum upload size")
	ErrEmpty           = errors.New("image is empty")
)

// extensions lists the accepted sniffed content types.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Storage defines the interface for profile image storage
type Storage interface {
	// StoreImage validates and stores an image, returning its file name
	StoreImage(ctx context.Context, data []byte) (string, error)

	// Delete removes a stored image by name
	Delete(ctx context.Context, name string) error
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	dir     string
	maxSize int64
}

// NewLocalStorage creates the upload directory if needed
func NewLocalStorage(dir string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{dir: dir, maxSize: maxSize}, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) StoreImage(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", ErrTooLarge
	}

	ext, ok := extensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return name, nil
}

func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	// Only plain file names inside the upload directory may be removed
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || name == ".." {
		return fmt.Errorf("invalid image name %q", name)
	}
	return os.Remove(filepath.Join(s.dir, name))
}
