package usecase

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the key/value store behind analysis results. Get reports a miss
// as redis.Nil.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache stores values in Redis under a fixed namespace.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, namespace: "artifact:"}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, c.namespace+key, value, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.namespace+key).Result()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.namespace + k
	}
	return c.client.Del(ctx, full...).Err()
}

// resultKey holds either the processing marker or the serialized outcome.
func resultKey(requestID string) string {
	return "analysis:" + requestID
}

// hashKey is scoped by user so one user's upload never answers another's.
func hashKey(userID, hash string) string {
	return "analysis:sha1:" + userID + ":" + hash
}
