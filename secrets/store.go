// Package secrets provides durable key/value blob storage for credentials.
package secrets

import "context"

// Store is opaque durable blob storage addressed by key.
// Set replaces the whole value; there are no partial writes.
type Store interface {
	// Get returns the value stored under key, or (nil, nil) when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
