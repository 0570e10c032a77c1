// Package store defines the shared ephemeral key-value store used for
// refresh-token liveness records, reset tickets, and rate-limit counters.
package store

import (
	"context"
	"time"
)

// Store is the contract over the shared ephemeral store. Every method maps
// to a single atomic store primitive; callers must never compose a local
// read with a separate write to emulate one of these.
type Store interface {
	// Incr atomically increments the integer at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL for an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// SetEx writes value under key with a TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value at key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// GetDel atomically reads and deletes key. At most one caller can
	// observe a given value; losers see ok=false.
	GetDel(ctx context.Context, key string) (string, bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
