package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/weblog/api/config"
)

// ErrObjectNotFound is returned by every backend when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const immutableCacheControl = "public, max-age=31536000, immutable"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API and bounds every
// write and delete by a timeout.
type Storage struct {
	backend ObjectStorage
	timeout time.Duration
}

// NewStorage constructs a Storage wrapper for the provided backend.
// A zero timeout disables the per-call deadline.
func NewStorage(backend ObjectStorage, timeout time.Duration) *Storage {
	return &Storage{backend: backend, timeout: timeout}
}

// New builds the backend selected by cfg.Media.Backend.
func New(ctx context.Context, cfg config.Config) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.Media.Backend {
	case "", config.MediaBackendLocal:
		local, err := NewLocalClient(cfg.Media.UploadsDir)
		if err != nil {
			return nil, err
		}
		backend = local
	case config.MediaBackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case config.MediaBackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
	}

	s := NewStorage(backend, cfg.Media.Timeout)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return s, nil
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
