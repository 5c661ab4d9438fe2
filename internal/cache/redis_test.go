package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisClient_LockIsExclusive(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	token, ok, err := c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists("test:lock:ingest"))

	_, ok, err = c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, c.ReleaseLock(ctx, "ingest", token))
	assert.False(t, mr.Exists("test:lock:ingest"))

	_, ok, err = c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClient_ReleaseIgnoresForeignToken(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "ingest", "not-the-owner"))
	assert.True(t, mr.Exists("test:lock:ingest"), "lock of another holder must survive")
}

func TestRedisClient_LockExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.AcquireLock(ctx, "ingest", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = c.AcquireLock(ctx, "ingest", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClient_Resolution(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, found, err := c.Resolution(ctx, "https://short.example.com/x")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.StoreResolution(ctx, "https://short.example.com/x", "https://cdn.example.com/x.jpg", time.Hour))

	got, found, err := c.Resolution(ctx, " https://short.example.com/x ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://cdn.example.com/x.jpg", got)
}

func TestMockRedisClient(t *testing.T) {
	m := NewMockRedisClient()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := m.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = m.AcquireLock(ctx, "ingest", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.AcquireLock(ctx, "ingest", time.Minute)
	assert.True(t, ok, "expired lock can be retaken")

	require.NoError(t, m.ReleaseLock(ctx, "ingest", token))

	require.NoError(t, m.StoreResolution(ctx, "https://a", "https://b", 0))
	got, found, err := m.Resolution(ctx, "https://a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://b", got)
}
