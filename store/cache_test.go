package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/personacore/personad/internal/cache"
)

func TestDBCache_SetGetDelete(t *testing.T) {
	st := initializedStore(t)
	ctx := context.Background()

	c := CacheFor("agent-1", nil, st)

	_, err := c.Get(ctx, "greeting")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "greeting", "hello", 0))
	val, err := c.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", val)

	// Upsert replaces the value.
	require.NoError(t, c.Set(ctx, "greeting", "bonjour", 0))
	val, err = c.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", val)

	require.NoError(t, c.Delete(ctx, "greeting"))
	_, err = c.Get(ctx, "greeting")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDBCache_Expiry(t *testing.T) {
	st := initializedStore(t)
	ctx := context.Background()

	c := CacheFor("agent-1", nil, st)
	require.NoError(t, c.Set(ctx, "ephemeral", "v", time.Nanosecond))

	time.Sleep(10 * time.Millisecond)
	_, err := c.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDBCache_AgentNamespaceIsolation(t *testing.T) {
	st := initializedStore(t)
	ctx := context.Background()

	a := CacheFor("agent-a", nil, st)
	b := CacheFor("agent-b", nil, st)

	require.NoError(t, a.Set(ctx, "k", "value-a", 0))
	require.NoError(t, b.Set(ctx, "k", "value-b", 0))

	va, err := a.Get(ctx, "k")
	require.NoError(t, err)
	vb, err := b.Get(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, "value-a", va)
	assert.Equal(t, "value-b", vb)

	require.NoError(t, a.Delete(ctx, "k"))
	_, err = a.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	vb, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value-b", vb, "deleting one agent's entry must not touch another's")
}

func TestRedisCache_Namespacing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	backend, err := cache.NewRedis(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx := context.Background()
	a := CacheFor("agent-a", backend, nil)
	b := CacheFor("agent-b", backend, nil)

	require.NoError(t, a.Set(ctx, "k", "value-a", time.Minute))
	require.NoError(t, b.Set(ctx, "k", "value-b", time.Minute))

	va, err := a.Get(ctx, "k")
	require.NoError(t, err)
	vb, err := b.Get(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, "value-a", va)
	assert.Equal(t, "value-b", vb)
}
