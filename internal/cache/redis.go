package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/granary/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// An unreachable Redis degrades to a disabled cache so callers can
	// warn and keep serving.
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return &RedisCache{enabled: false}, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return errors.Wrap(err, "key not found in cache")
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache with optional expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	err = c.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes keys from cache, used for invalidation after writes
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled {
		return nil
	}

	err := c.client.Del(ctx, keys...).Err()
	if err != nil {
		return errors.Wrap(err, "failed to delete keys from Redis")
	}

	return nil
}

// MaterialTypesCacheKey is the cache key for the material type listing
func MaterialTypesCacheKey(includeInactive bool) string {
	if includeInactive {
		return "material_types:all"
	}
	return "material_types:active"
}

// SiloStatusCacheKey generates a cache key for a silo's computed status
func SiloStatusCacheKey(siloID uint) string {
	return fmt.Sprintf("silo_status:%d", siloID)
}

// InventorySummaryCacheKey is the cache key for the per-material summary
func InventorySummaryCacheKey() string {
	return "inventory:summary"
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
