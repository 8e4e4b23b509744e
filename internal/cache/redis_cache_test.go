package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanInvalidator передаёт ключи в канал: RedisCache публикует асинхронно
type chanInvalidator struct {
	keys chan string
}

func (c *chanInvalidator) PublishInvalidation(_ context.Context, key string) error {
	c.keys <- key
	return nil
}

func (c *chanInvalidator) SubscribeInvalidations(context.Context, InvalidationHandler) error {
	return nil
}

func (c *chanInvalidator) Close() error { return nil }

func setupRedisCache(t *testing.T, inv CacheInvalidator) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(&CacheConfig{RedisURL: mr.Addr(), DefaultTTL: time.Minute}, inv)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, nil)

	_, err := c.Get(ctx, "render:map:1:abc")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "render:map:1:abc", []byte(`{"id":1}`), 0))
	assert.True(t, mr.Exists("assets:render:map:1:abc"), "ключ хранится с префиксом")

	val, err := c.Get(ctx, "render:map:1:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":1}`), val)

	mr.FastForward(2 * time.Minute)
	ok, err := c.Exists(ctx, "render:map:1:abc")
	require.NoError(t, err)
	assert.False(t, ok, "TTL по умолчанию истёк")

	assert.ErrorIs(t, c.Set(ctx, "", []byte("x"), 0), ErrInvalidKey)
}

func TestRedisCacheBatch(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedisCache(t, nil)

	require.NoError(t, c.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, time.Minute))
	got, err := c.BatchGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	m := c.GetMetrics()
	assert.Equal(t, int64(2), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)
}

func TestRedisCacheInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	inv := &chanInvalidator{keys: make(chan string, 1)}
	c, mr := setupRedisCache(t, inv)

	for _, k := range []string{"render:d2o:Items:1", "render:d2o:Items:all", "render:d2o:Spells:1"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}
	require.NoError(t, c.InvalidatePrefix(ctx, "render:d2o:Items:"))

	assert.False(t, mr.Exists("assets:render:d2o:Items:1"))
	assert.False(t, mr.Exists("assets:render:d2o:Items:all"))
	assert.True(t, mr.Exists("assets:render:d2o:Spells:1"))

	select {
	case key := <-inv.keys:
		assert.Equal(t, "render:d2o:Items:*", key)
	case <-time.After(2 * time.Second):
		t.Fatal("инвалидация не опубликована")
	}
}
