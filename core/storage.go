package core

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is any service that can store and serve uploaded files.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
