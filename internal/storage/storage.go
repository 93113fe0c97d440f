package storage

import (
	"context"
)

// KV is the interface for the durable key-value persistence primitive the
// task store serializes its collection into.
type KV interface {
	// Get returns the value stored under a key. Returns model.ErrNotFound
	// (wrapped) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under a key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
