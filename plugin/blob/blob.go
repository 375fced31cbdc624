// Package blob abstracts the object store holding attachment bytes.
package blob

import (
	"context"
)

// Store is a key-addressed object store for attachment bytes.
type Store interface {
	// Put writes an object under the given storage key.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the object stored under the key.
	Get(ctx context.Context, key string) ([]byte, error)

	// BatchDelete removes the objects stored under the given keys. A key
	// that does not exist is not an error. Returns the first failure
	// encountered after attempting every key.
	BatchDelete(ctx context.Context, keys []string) error
}
