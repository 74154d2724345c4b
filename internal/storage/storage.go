package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key, or a revision of it, does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Object is an open revision of a stored object. Callers must close Body.
type Object struct {
	ContentType string
	Body        io.ReadCloser
}

// ObjectStore defines the interface for blob storage scoped to one bucket.
type ObjectStore interface {
	// Put uploads data under key and returns the store's revision id for it.
	// The revision id is empty when the backend does not version objects.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get opens the given revision of key. An empty version opens the live
	// object. A revision that no longer exists is an error.
	Get(ctx context.Context, key, version string) (*Object, error)

	// List returns every live object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes the live object. Historical revisions are left to the
	// backend's own retention.
	Delete(ctx context.Context, key string) error
}

// normalizeVersion maps the "null" revision id S3 reports for unversioned
// or suspended buckets to empty.
func normalizeVersion(v string) string {
	if v == "null" {
		return ""
	}
	return v
}
