// Package cache provides the read-path cache and its coherence helpers. The
// cache is derived state, never authoritative: writers only invalidate, they
// never write values speculatively.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss reports that a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is the cache surface the repositories depend on.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ProductKey returns the per-product cache key.
func ProductKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(host string, port int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Connected to Redis")

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from cache, returning ErrMiss when absent.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set stores a value with the given time-to-live.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Invalidate removes keys. Removing an absent key is a no-op, so concurrent
// and repeated invalidations are safe.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetOrPopulate returns the cached value for key, or calls fetch under a
// bounded timeout, caches the result with the given TTL and returns it. A
// fetch failure surfaces to the caller and caches nothing; a failure to cache
// a fetched value is logged but does not fail the read.
func GetOrPopulate[T any](ctx context.Context, store Store, key string, ttl, fetchTimeout time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	err := store.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Printf("⚠️ Cache read error for %s: %v", key, err)
	}

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	fetched, err := fetch(fctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := store.Set(ctx, key, fetched, ttl); err != nil {
		log.Printf("⚠️ Failed to cache %s: %v", key, err)
	}
	return fetched, nil
}
