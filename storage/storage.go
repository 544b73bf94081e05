// Package storage defines a small TTL-aware key/value store. The registry
// uses it to cache capability listings so repeated lookups do not round-trip
// every server subprocess; other callers are free to use it for their own
// scratch data.
package storage

import (
	"context"
	"time"
)

// Storage is the store contract shared by the memory and redis backends.
type Storage interface {
	// Get retrieves the item stored under key. It returns a nil item when
	// the key is absent or expired; an error signals a storage system
	// failure, never a miss.
	Get(ctx context.Context, key string) (*Item, error)

	// Set stores data under key. A ttl of zero or less means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend and its resources.
	Close() error
}

// Item is one stored value with its expiry metadata.
type Item struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = no expiry
}

// IsExpired reports whether the item's TTL has elapsed.
func (it *Item) IsExpired() bool {
	return it.ExpiresAt != nil && time.Now().After(*it.ExpiresAt)
}
