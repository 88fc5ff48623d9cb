package storage

import (
	"context"
	"io"
)

// ObjectStore is where exported datasets end up. Keys are slash separated
// paths relative to the store root.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}
