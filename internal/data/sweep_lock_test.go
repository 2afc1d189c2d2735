package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/testutil"
)

// memoryCache is an in-process core.CacheRepository for lock tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryCache) SetIfNotExists(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryCache) DeleteIfValue(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if string(m.data[key]) != string(value) {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memoryCache) Health(context.Context) error { return nil }

func TestCacheSweepLock(t *testing.T) {
	ctx := context.Background()
	cache := newMemoryCache()
	a := NewCacheSweepLock(cache, "")
	b := NewCacheSweepLock(cache, "")

	release, ok, err := a.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Simulate expiry followed by another holder: the stale release must not remove it.
	cache.data[DefaultSweepLockKey] = []byte("someone-else")
	require.NoError(t, release(ctx))
	assert.Equal(t, []byte("someone-else"), cache.data[DefaultSweepLockKey])

	delete(cache.data, DefaultSweepLockKey)
	release, ok, err = b.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release(ctx))
	assert.Empty(t, cache.data)
}

func TestCacheSweepLock_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	lock := NewCacheSweepLock(NewRedisCacheRepo(testutil.SetupTestRedis(t)), "test:sweep")
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = lock.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalSweepLock(t *testing.T) {
	var lock LocalSweepLock
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = lock.TryAcquire(ctx, time.Minute)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, _ = lock.TryAcquire(ctx, time.Minute)
	assert.True(t, ok)
}
