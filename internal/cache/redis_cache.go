package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует CacheRepo поверх Redis.
// Все ключи хранятся с общим префиксом KeyPrefix, чтобы несколько сервисов могли делить одну базу.
type RedisCache struct {
	client      *redis.Client
	config      *CacheConfig
	invalidator CacheInvalidator
	stats       stats
}

// NewRedisCache создаёт Redis кеш.
//
// Параметры:
//
//	config - конфигурация Redis
//	invalidator - опциональный invalidator для Pub/Sub (может быть nil)
func NewRedisCache(config *CacheConfig, invalidator CacheInvalidator) (*RedisCache, error) {
	config.applyDefaults()
	if config.KeyPrefix == "" {
		config.KeyPrefix = "assets:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s (prefix %q)", config.RedisURL, config.KeyPrefix)
	return &RedisCache{
		client:      rdb,
		config:      config,
		invalidator: invalidator,
	}, nil
}

func (r *RedisCache) key(key string) string {
	return r.config.KeyPrefix + key
}

// Get получает значение по ключу из Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer r.stats.recordLatency(start)

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == nil {
		r.stats.hit(1)
		return val, nil
	}

	r.stats.miss(1)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	start := time.Now()
	defer r.stats.recordLatency(start)

	if err := r.client.Set(ctx, r.key(key), value, r.config.ttlFor(ttl)).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из кеша без уведомления других узлов
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer r.stats.recordLatency(start)

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// DeletePrefix удаляет все ключи с префиксом через SCAN
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	start := time.Now()
	defer r.stats.recordLatency(start)

	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete error: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan error: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete error: %w", err)
		}
	}
	return nil
}

// Exists проверяет существование ключа в кеше
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	defer r.stats.recordLatency(start)

	count, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return count > 0, nil
}

// Invalidate удаляет ключ и уведомляет другие узлы
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := r.Delete(ctx, key); err != nil {
		return err
	}
	r.publish(key)
	return nil
}

// InvalidatePrefix удаляет ключи с префиксом и уведомляет другие узлы
func (r *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := r.DeletePrefix(ctx, prefix); err != nil {
		return err
	}
	r.publish(PrefixKey(prefix))
	return nil
}

func (r *RedisCache) publish(key string) {
	if r.invalidator == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
			logging.Error("Failed to publish invalidation for key %s: %v", key, err)
		}
	}()
}

// BatchGet получает несколько значений за один запрос
func (r *RedisCache) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	defer r.stats.recordLatency(start)

	result := make(map[string][]byte)
	if len(keys) == 0 {
		return result, nil
	}

	pipe := r.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.Get(ctx, r.key(key))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		logging.Error("Redis BatchGet pipeline error: %v", err)
		return nil, fmt.Errorf("redis batch get error: %w", err)
	}

	for key, cmd := range cmds {
		val, err := cmd.Bytes()
		switch {
		case err == nil:
			result[key] = val
			r.stats.hit(1)
		case errors.Is(err, redis.Nil):
			r.stats.miss(1)
		default:
			logging.Error("Redis BatchGet error for key %s: %v", key, err)
			r.stats.miss(1)
		}
	}
	return result, nil
}

// BatchSet сохраняет несколько значений за один запрос
func (r *RedisCache) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	start := time.Now()
	defer r.stats.recordLatency(start)

	if len(items) == 0 {
		return nil
	}

	ttl = r.config.ttlFor(ttl)
	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, r.key(key), value, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logging.Error("Redis BatchSet pipeline error: %v", err)
		return fmt.Errorf("redis batch set error: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает текущие метрики кеша.
// TotalKeys не заполняется: DBSIZE считает ключи всей базы, а не префикса.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	return r.stats.snapshot(0)
}
