package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/mmo-assets/internal/logging"
	lru "github.com/hashicorp/golang-lru"
)

// MemoryCache реализует CacheRepo в памяти процесса поверх LRU.
// Используется, когда Redis не настроен, и в тестах.
type MemoryCache struct {
	entries     *lru.Cache
	config      *CacheConfig
	invalidator CacheInvalidator
	stats       stats

	now func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache создаёт кеш на size записей
func NewMemoryCache(config *CacheConfig, size int, invalidator CacheInvalidator) (*MemoryCache, error) {
	if config == nil {
		config = &CacheConfig{}
	}
	config.applyDefaults()

	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}

	logging.Debug("Memory cache initialized: %d entries", size)
	return &MemoryCache{
		entries:     entries,
		config:      config,
		invalidator: invalidator,
		now:         time.Now,
	}, nil
}

func (m *MemoryCache) lookup(key string) ([]byte, bool) {
	raw, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(memoryEntry)
	if !m.now().Before(entry.expires) {
		m.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Get получает значение по ключу
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer m.stats.recordLatency(start)

	if value, ok := m.lookup(key); ok {
		m.stats.hit(1)
		return value, nil
	}
	m.stats.miss(1)
	return nil, ErrCacheMiss
}

// Set сохраняет значение
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	start := time.Now()
	defer m.stats.recordLatency(start)

	m.entries.Add(key, memoryEntry{value: value, expires: m.now().Add(m.config.ttlFor(ttl))})
	return nil
}

// Delete удаляет ключ
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// DeletePrefix удаляет все ключи с префиксом
func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for _, raw := range m.entries.Keys() {
		if key := raw.(string); strings.HasPrefix(key, prefix) {
			m.entries.Remove(key)
		}
	}
	return nil
}

// Exists проверяет существование непросроченного ключа
func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.lookup(key)
	return ok, nil
}

// Invalidate удаляет ключ и уведомляет другие узлы
func (m *MemoryCache) Invalidate(ctx context.Context, key string) error {
	m.entries.Remove(key)
	return m.publish(ctx, key)
}

// InvalidatePrefix удаляет ключи с префиксом и уведомляет другие узлы
func (m *MemoryCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := m.DeletePrefix(ctx, prefix); err != nil {
		return err
	}
	return m.publish(ctx, PrefixKey(prefix))
}

func (m *MemoryCache) publish(ctx context.Context, key string) error {
	if m.invalidator == nil {
		return nil
	}
	if err := m.invalidator.PublishInvalidation(ctx, key); err != nil {
		logging.Error("Failed to publish invalidation for key %s: %v", key, err)
		return err
	}
	return nil
}

// BatchGet получает несколько значений
func (m *MemoryCache) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	defer m.stats.recordLatency(start)

	result := make(map[string][]byte)
	for _, key := range keys {
		if value, ok := m.lookup(key); ok {
			result[key] = value
			m.stats.hit(1)
		} else {
			m.stats.miss(1)
		}
	}
	return result, nil
}

// BatchSet сохраняет несколько значений
func (m *MemoryCache) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for key, value := range items {
		if err := m.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Close очищает кеш
func (m *MemoryCache) Close() error {
	m.entries.Purge()
	return nil
}

// GetMetrics возвращает текущие метрики кеша
func (m *MemoryCache) GetMetrics() *CacheMetrics {
	return m.stats.snapshot(int64(m.entries.Len()))
}
