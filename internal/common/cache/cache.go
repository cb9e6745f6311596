package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"community-bot-backend/internal/platform/redis"
)

// CacheService keeps short-lived denormalized snapshots of entities in Redis
// so status commands do not hit the store on every lookup. It is strictly a
// read accelerator; the lifecycle managers own the authoritative state.
type CacheService struct {
	redisClient *redis.Client
}

func NewCacheService(redisClient *redis.Client) *CacheService {
	return &CacheService{redisClient: redisClient}
}

func snapshotKey(kind, id string) string {
	return fmt.Sprintf("%s:snapshot:%s", kind, id)
}

// Get reads a cached value into dest. Returns redis.Nil on a miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redisClient.Set(ctx, key, string(data), ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, key string) error {
	return c.redisClient.Del(ctx, key).Err()
}

// GetSnapshot reads a cached entity snapshot.
func (c *CacheService) GetSnapshot(ctx context.Context, kind, id string, dest interface{}) error {
	return c.Get(ctx, snapshotKey(kind, id), dest)
}

// SetSnapshot stores an entity snapshot.
func (c *CacheService) SetSnapshot(ctx context.Context, kind, id string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, snapshotKey(kind, id), value, ttl)
}

// InvalidateEntity drops the snapshot after a mutation.
func (c *CacheService) InvalidateEntity(ctx context.Context, kind, id string) error {
	return c.Delete(ctx, snapshotKey(kind, id))
}
