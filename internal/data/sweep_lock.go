package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/case-dispatch/internal/core"
)

// DefaultSweepLockKey is the Redis key guarding timeline sweeps.
const DefaultSweepLockKey = "casedispatch:timeline:sweep"

// CacheSweepLock implements core.SweepLock on top of a core.CacheRepository (Redis in production).
// Each acquisition stores a unique token so a holder whose TTL lapsed cannot release a lock that
// has since been taken by another replica.
type CacheSweepLock struct {
	cache core.CacheRepository
	key   string
}

// NewCacheSweepLock creates a lock stored under key (DefaultSweepLockKey when empty).
func NewCacheSweepLock(cache core.CacheRepository, key string) *CacheSweepLock {
	if key == "" {
		key = DefaultSweepLockKey
	}
	return &CacheSweepLock{cache: cache, key: key}
}

// TryAcquire implements core.SweepLock.
func (l *CacheSweepLock) TryAcquire(
	ctx context.Context,
	ttl time.Duration,
) (func(context.Context) error, bool, error) {
	token := []byte(uuid.NewString())
	ok, err := l.cache.SetIfNotExists(ctx, l.key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if _, delErr := l.cache.DeleteIfValue(ctx, l.key, token); delErr != nil {
			return fmt.Errorf("release sweep lock: %w", delErr)
		}
		return nil
	}
	return release, true, nil
}

// LocalSweepLock serializes sweeps inside one process when Redis is not configured.
type LocalSweepLock struct {
	mu sync.Mutex
}

// TryAcquire implements core.SweepLock. The TTL is ignored: the holder always releases.
func (l *LocalSweepLock) TryAcquire(context.Context, time.Duration) (func(context.Context) error, bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, true, nil
}
