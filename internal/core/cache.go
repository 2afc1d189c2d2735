// Package core defines the ports between the case dispatch services and their storage adapters.
package core

import (
	"context"
	"time"
)

// CacheRepository defines the key/value operations the dispatch server needs from Redis.
type CacheRepository interface {
	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfValue removes key only while it still holds value.
	// Returns true if the key was deleted.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// SweepLock serializes timeline sweeps across dispatch server replicas.
type SweepLock interface {
	// TryAcquire returns a release func when the lock was obtained, or ok=false when another
	// holder owns it.
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
