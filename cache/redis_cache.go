package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ammiranda/medicine_service/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache provider
func NewRedisCache() *RedisCache {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	return &RedisCache{
		client: client,
		ttl:    5 * time.Minute,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *RedisCache) Initialize() error {
	ctx := context.Background()
	_, err := c.client.Ping(ctx).Result()
	return err
}

func forestKey(entity string) string {
	return "forest:" + entity
}

// GetForest retrieves the assembled forest from cache if available
func (c *RedisCache) GetForest(entity string) ([]*models.TreeNode, bool) {
	ctx := context.Background()
	data, err := c.client.Get(ctx, forestKey(entity)).Result()
	if err != nil {
		return nil, false
	}

	var forest []*models.TreeNode
	if err := json.Unmarshal([]byte(data), &forest); err != nil {
		return nil, false
	}
	return forest, true
}

// SetForest stores the assembled forest in cache
func (c *RedisCache) SetForest(entity string, forest []*models.TreeNode) {
	ctx := context.Background()
	data, err := json.Marshal(forest)
	if err != nil {
		return
	}
	c.client.Set(ctx, forestKey(entity), data, c.ttl)
}

// Invalidate removes the cached forest for the given entity
func (c *RedisCache) Invalidate(entity string) {
	ctx := context.Background()
	c.client.Del(ctx, forestKey(entity))
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
