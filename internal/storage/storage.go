// Package storage persists keyframe artifacts and session manifests on the
// local filesystem or in a MinIO bucket.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Backend stores opaque objects under slash-separated keys.
type Backend interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Remove deletes key. Removing a missing key returns ErrNotFound.
	Remove(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Locate returns a path or URL a consumer can use to fetch key.
	Locate(key string) string
}
