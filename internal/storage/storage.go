// Package storage keeps durable copies of generated artifacts.
// It defines the Storage interface and implementations for local disk
// and S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned when an object key is empty or escapes the
// storage root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// Storage saves objects and returns the URL they can be fetched from.
type Storage interface {
	// Save writes data under key and returns its public URL.
	Save(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
