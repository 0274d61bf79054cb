package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// RedisCache backs the progress cache with Redis so multiple instances share
// one view. Failures degrade to cache misses; the durable store stays
// authoritative.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 连接Redis并创建缓存。
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get fetches and decodes the cached progress; any error counts as a miss.
func (c *RedisCache) Get(ctx context.Context, userID, companionID string) (*progress.RelationshipProgress, bool) {
	raw, err := c.client.Get(ctx, cacheKey(userID, companionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache] redis get failed: %v", err)
		}
		return nil, false
	}

	var p progress.RelationshipProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("[cache] corrupt progress entry dropped: %v", err)
		c.client.Del(ctx, cacheKey(userID, companionID))
		return nil, false
	}
	return &p, true
}

// Set stores the progress with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, p *progress.RelationshipProgress) {
	raw, err := json.Marshal(p)
	if err != nil {
		log.Printf("[cache] failed to encode progress: %v", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(p.UserID, p.CompanionID), raw, c.ttl).Err(); err != nil {
		log.Printf("[cache] redis set failed: %v", err)
	}
}

// Invalidate drops the pair's entry.
func (c *RedisCache) Invalidate(ctx context.Context, userID, companionID string) {
	if err := c.client.Del(ctx, cacheKey(userID, companionID)).Err(); err != nil {
		log.Printf("[cache] redis del failed: %v", err)
	}
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
