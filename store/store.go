// Package store persists hub state snapshots through a pluggable key-value
// interface. Keys are /-separated relative paths; values are raw bytes.
package store

import "context"

// Store translates between external storage and the hub's snapshot namespace.
// Implementations are stateless and perform I/O on each call without caching.
type Store interface {
	// List returns all available keys in the store.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries to storage, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries from storage. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one stored snapshot record.
type Entry struct {
	Key   string
	Value []byte
}
