package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Cache{
		"memory": NewMemory(),
		"redis":  NewRedis(client, "test:"),
	}
}

func TestCache_Contract(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
			got, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, c.Ping(ctx))
		})
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(2 * time.Minute)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, m.Purge())

	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, m.Close())
	_, err = m.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
}

func TestRedis_ExpiryAndPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "usergrid:")
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("usergrid:k"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := DialRedis(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "p:"})
	require.NoError(t, err)
	defer c.Close()

	_, err = DialRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestGetOrSetJSON(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	calls := 0
	compute := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, hit, err := GetOrSetJSON(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a", "b"}, got)

	got, hit, err = GetOrSetJSON(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = GetOrSetJSON(ctx, c, "other", 0, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}
