package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLocker(t *testing.T, now *time.Time) *MemoryLocker {
	t.Helper()
	m := NewMemoryLocker()
	m.now = func() time.Time { return *now }
	t.Cleanup(m.Stop)
	return m
}

// held reports whether any owner holds key.
func (m *MemoryLocker) held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newTestMemoryLocker(t, &now)
	ctx := context.Background()
	key := Keys.OTPSweep()

	ok, err := m.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	assert.True(t, m.held(key))

	released, err := m.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = m.Release(ctx, key)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newTestMemoryLocker(t, &now)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := m.Extend(ctx, "k", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	now = now.Add(90 * time.Second)
	assert.True(t, m.held("k"))

	now = now.Add(time.Minute)
	assert.False(t, m.held("k"))

	extended, err = m.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestMemoryLocker_OwnerIsolation(t *testing.T) {
	now := time.Now()
	m := newTestMemoryLocker(t, &now)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Another owner sharing the same table.
	m.owner = "other"

	released, err := m.Release(ctx, "k")
	require.NoError(t, err)
	assert.False(t, released, "a different owner must not release the lock")

	extended, err := m.Extend(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	m := NewMemoryLocker()
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireWithRetry(t *testing.T) {
	now := time.Now()
	m := newTestMemoryLocker(t, &now)
	ctx := context.Background()

	ok, err := AcquireWithRetry(ctx, m, "k", time.Minute, 2, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AcquireWithRetry(ctx, m, "k", time.Minute, 2, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoOpLocker(t *testing.T) {
	n := NewNoOpLocker()
	ctx := context.Background()

	ok, err := n.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = n.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	s, client := newTestRedis(t)
	a := NewRedisLocker(client, "test:")
	b := NewRedisLocker(client, "test:")
	ctx := context.Background()
	key := Keys.OTPSweep()

	ok, err := a.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("test:"+key))

	ok, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := b.Release(ctx, key)
	require.NoError(t, err)
	assert.False(t, released, "only the owner may release")

	assert.True(t, s.Exists("test:"+key))

	released, err = a.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ExpiryAndExtend(t *testing.T) {
	s, client := newTestRedis(t)
	l := NewRedisLocker(client, "")
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := l.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Minute, s.TTL("k"))

	s.FastForward(2 * time.Minute)

	assert.False(t, s.Exists("k"))

	extended, err = l.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	l := NewRedisLocker(client, "")
	_, err = l.Acquire(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
