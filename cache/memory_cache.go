package cache

import (
	"sync"
	"time"

	"github.com/ammiranda/medicine_service/models"
)

// MemoryCache implements CacheProvider using in-memory storage
type MemoryCache struct {
	mu       sync.RWMutex
	data     map[string][]*models.TreeNode
	expiries map[string]time.Time
	ttl      time.Duration
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		ttl:      5 * time.Minute,
		data:     make(map[string][]*models.TreeNode),
		expiries: make(map[string]time.Time),
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MemoryCache) Initialize() error {
	return nil
}

// GetForest retrieves the assembled forest from cache if available
func (c *MemoryCache) GetForest(entity string) ([]*models.TreeNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiry, exists := c.expiries[entity]
	if !exists || time.Now().After(expiry) {
		return nil, false
	}

	if forest, ok := c.data[entity]; ok {
		return forest, true
	}
	return nil, false
}

// SetForest stores the assembled forest in cache
func (c *MemoryCache) SetForest(entity string, forest []*models.TreeNode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[entity] = forest
	c.expiries[entity] = time.Now().Add(c.ttl)
}

// Invalidate removes the cached forest for the given entity
func (c *MemoryCache) Invalidate(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, entity)
	delete(c.expiries, entity)
}

// SetCacheTTL sets the cache time-to-live duration
func (c *MemoryCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	now := time.Now()
	for key := range c.data {
		c.expiries[key] = now.Add(ttl)
	}
}
