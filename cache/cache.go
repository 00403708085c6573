package cache

import (
	"os"
	"sync"
	"time"

	"github.com/ammiranda/medicine_service/models"
)

var (
	provider CacheProvider
	once     sync.Once
	mu       sync.RWMutex
)

// CacheProvider defines the interface for cache implementations.
// Assembled forests are cached per entity (categories, atc-codes) and
// invalidated whole whenever any node of that entity mutates.
type CacheProvider interface {
	// GetForest retrieves the assembled forest for the given entity.
	// Returns the forest and a boolean indicating a cache hit.
	GetForest(entity string) ([]*models.TreeNode, bool)

	// SetForest stores the assembled forest for the given entity.
	SetForest(entity string, forest []*models.TreeNode)

	// Invalidate removes the cached forest for the given entity.
	// This is called after every mutation of that entity's trees.
	Invalidate(entity string)

	// SetCacheTTL sets the cache time-to-live duration.
	SetCacheTTL(ttl time.Duration)

	// Initialize performs any necessary setup for the cache provider.
	// Returns an error if initialization fails.
	Initialize() error
}

// Initialize sets up the cache provider
func Initialize() error {
	var err error
	once.Do(func() {
		// Use Redis when configured, MemoryCache otherwise
		if os.Getenv("REDIS_HOST") != "" {
			provider = NewRedisCache()
		} else {
			provider = NewMemoryCache()
		}
		err = provider.Initialize()
	})
	return err
}

// GetForest retrieves the assembled forest from cache if available
func GetForest(entity string) ([]*models.TreeNode, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return nil, false
	}
	return provider.GetForest(entity)
}

// SetForest stores the assembled forest in cache
func SetForest(entity string, forest []*models.TreeNode) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.SetForest(entity, forest)
}

// Invalidate removes the cached forest for the given entity
func Invalidate(entity string) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.Invalidate(entity)
}

// SetCacheTTL sets the cache time-to-live duration
func SetCacheTTL(ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.SetCacheTTL(ttl)
}

// SetProvider allows changing the cache provider at runtime
func SetProvider(p CacheProvider) error {
	mu.Lock()
	defer mu.Unlock()
	if err := p.Initialize(); err != nil {
		return err
	}
	provider = p
	return nil
}

// ResetProvider resets the cache provider for testing
func ResetProvider() {
	mu.Lock()
	defer mu.Unlock()
	provider = nil
	once = sync.Once{}
}
