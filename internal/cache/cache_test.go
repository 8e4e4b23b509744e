package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingInvalidator запоминает опубликованные ключи
type recordingInvalidator struct {
	keys []string
	err  error
}

func (r *recordingInvalidator) PublishInvalidation(_ context.Context, key string) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingInvalidator) SubscribeInvalidations(context.Context, InvalidationHandler) error {
	return nil
}

func (r *recordingInvalidator) Close() error { return nil }

func setupMemoryCache(t *testing.T, size int, inv CacheInvalidator) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(&CacheConfig{DefaultTTL: time.Minute, MaxTTL: time.Hour}, size, inv)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := setupMemoryCache(t, 16, nil)

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	val, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "a"))
	ok, _ = c.Exists(ctx, "a")
	assert.False(t, ok)

	assert.ErrorIs(t, c.Set(ctx, "", []byte("x"), 0), ErrInvalidKey)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := setupMemoryCache(t, 16, nil)

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, c.Set(ctx, "capped", []byte("y"), 10*time.Hour))

	now = now.Add(2 * time.Second)
	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err), "запись с истёкшим TTL не возвращается")

	now = now.Add(time.Hour)
	_, err = c.Get(ctx, "capped")
	assert.True(t, IsCacheMiss(err), "TTL ограничен MaxTTL")
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := setupMemoryCache(t, 2, nil)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "b")
	assert.True(t, IsCacheMiss(err), "вытесняется давно не использованный ключ")
	assert.Equal(t, int64(2), c.GetMetrics().TotalKeys)
}

func TestMemoryCacheBatch(t *testing.T) {
	ctx := context.Background()
	c := setupMemoryCache(t, 16, nil)

	require.NoError(t, c.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0))
	got, err := c.BatchGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	m := c.GetMetrics()
	assert.Equal(t, int64(3), m.TotalRequests)
	assert.Equal(t, int64(2), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)
	assert.InDelta(t, 2.0/3.0, m.HitRatio, 1e-9)
}

func TestMemoryCacheInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	c := setupMemoryCache(t, 16, inv)

	require.NoError(t, c.Set(ctx, "render:object:Items:1", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "render:object:Items:2", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "render:object:Spells:1", []byte("3"), 0))

	require.NoError(t, c.InvalidatePrefix(ctx, "render:object:Items:"))
	require.NoError(t, c.Invalidate(ctx, "render:object:Spells:1"))

	for _, key := range []string{"render:object:Items:1", "render:object:Items:2", "render:object:Spells:1"} {
		ok, _ := c.Exists(ctx, key)
		assert.False(t, ok, key)
	}
	assert.Equal(t, []string{"render:object:Items:*", "render:object:Spells:1"}, inv.keys)

	inv.err = errors.New("nats down")
	assert.Error(t, c.Invalidate(ctx, "x"))
}

func TestPrefixKey(t *testing.T) {
	prefix, ok := SplitPrefixKey(PrefixKey("render:map:"))
	assert.True(t, ok)
	assert.Equal(t, "render:map:", prefix)

	key, ok := SplitPrefixKey("render:map:1")
	assert.False(t, ok)
	assert.Equal(t, "render:map:1", key)

	_, ok = SplitPrefixKey("")
	assert.False(t, ok)
}

func invalidationMsg(t *testing.T, key, node string) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(InvalidationMessage{Key: key, NodeID: node, Timestamp: time.Now()})
	require.NoError(t, err)
	return &nats.Msg{Data: data}
}

func TestInvalidationMessageHandling(t *testing.T) {
	ctx := context.Background()
	local := setupMemoryCache(t, 16, nil)
	require.NoError(t, local.Set(ctx, "render:object:Items:1", []byte("1"), 0))
	require.NoError(t, local.Set(ctx, "render:map:7", []byte("2"), 0))

	n := newInvalidator(&InvalidatorConfig{DedupeWindow: time.Minute}, "self")
	n.handler = ApplyTo(local)

	// собственные сообщения игнорируются
	n.handleInvalidationMessage(invalidationMsg(t, "render:map:7", "self"))
	ok, _ := local.Exists(ctx, "render:map:7")
	assert.True(t, ok)

	n.handleInvalidationMessage(invalidationMsg(t, "render:map:7", "other"))
	ok, _ = local.Exists(ctx, "render:map:7")
	assert.False(t, ok)

	n.handleInvalidationMessage(invalidationMsg(t, PrefixKey("render:object:Items:"), "other"))
	ok, _ = local.Exists(ctx, "render:object:Items:1")
	assert.False(t, ok)

	// повтор в окне дедупликации не вызывает обработчик
	calls := 0
	n.handler = func(string) error { calls++; return nil }
	n.handleInvalidationMessage(invalidationMsg(t, "render:map:7", "other"))
	assert.Equal(t, 0, calls)

	n.handleInvalidationMessage(&nats.Msg{Data: []byte("{")})
	assert.Equal(t, int64(1), n.errorsCount)
	assert.Equal(t, int64(5), n.receivedCount)
}

func TestInvalidatorNodeID(t *testing.T) {
	a := newInvalidator(&InvalidatorConfig{}, "")
	b := newInvalidator(&InvalidatorConfig{}, "")
	assert.NotEmpty(t, a.NodeID())
	assert.NotEqual(t, a.NodeID(), b.NodeID())
	assert.Equal(t, "assets.invalidation", a.subject)

	data, err := a.encode(PrefixKey("render:object:Items:"))
	require.NoError(t, err)
	var msg InvalidationMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "module_reloaded", msg.Reason)
	assert.Equal(t, a.NodeID(), msg.NodeID)
}
