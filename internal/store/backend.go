// Package store persists the tracker state document. The document is
// versioned; older shapes are migrated forward on load.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Backend stores opaque documents by key.
type Backend interface {
	// Load returns ErrNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}
