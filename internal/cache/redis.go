package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/backstage/services/identifier/config"
)

var (
	// ErrCacheMiss is returned by Get when the key is absent
	ErrCacheMiss = errors.New("key not found in cache")
	// ErrCacheDisabled is returned by every operation on a disabled cache
	ErrCacheDisabled = errors.New("cache is disabled")
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
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, enabled: client != nil}
}

// Enabled reports whether the cache is backed by a Redis connection
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Client exposes the underlying connection for counters and locks
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a value in cache with optional expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// ShortSerialKey is the cache key of a short serial's full serial
func ShortSerialKey(short string) string {
	return fmt.Sprintf("serial:short:%s", short)
}

// FullSerialKey is the cache key of a full serial's short serial
func FullSerialKey(full string) string {
	return fmt.Sprintf("serial:full:%s", full)
}

// BatchKey is the cache key of an issued batch record
func BatchKey(batchNumber string) string {
	return fmt.Sprintf("batch:%s", batchNumber)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
