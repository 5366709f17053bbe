package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no content is stored under a key.
var ErrNotFound = errors.New("content not found")

// ContentStore is the interface for data file content backends.
// Keys are opaque handles produced by NewKey; the store owns the bytes.
type ContentStore interface {
	// Open returns a reader over the content stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put stores content under key, replacing any previous content, and
	// returns the number of bytes read from r.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Delete removes the content under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}

// StaleCleaner is implemented by stores that can leave scratch files behind
// when the process dies mid-Put.
type StaleCleaner interface {
	// RemoveStale deletes scratch files untouched for longer than olderThan
	// and returns how many were removed.
	RemoveStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewKey returns a fresh content key.
func NewKey() string {
	return uuid.NewString()
}

// ValidateKey rejects keys that could escape the store's namespace.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty content key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid content key %q", key)
	}
	return nil
}
