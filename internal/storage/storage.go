// Package storage provides the file storage abstraction for case
// attachments. Backends store opaque bytes under caller-chosen keys; all
// metadata (name, content type, ownership) lives in the database, so
// adapters stay swappable between local disk and cloud blob stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// Adapter stores and retrieves opaque blobs by key.
type Adapter interface {
	// Put writes the object under key, replacing any existing object, and
	// returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Get opens the object for reading. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects keys that could escape the backend's namespace.
// Keys are generated internally, so a failure here is a programming error.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
