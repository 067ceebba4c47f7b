package trustportal

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
)

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	friendlyURL string
	orgID       uuid.UUID
	view        *models.PublicTrustView
	insertedAt  time.Time
	element     *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// ViewCache is an in-memory LRU cache with TTL for public trust views,
// keyed by friendly URL
type ViewCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewViewCache creates a new ViewCache with specified max size and TTL
func NewViewCache(maxSize int, ttl time.Duration) *ViewCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ViewCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached view, or nil if missing or expired
func (c *ViewCache) Get(friendlyURL string) *models.PublicTrustView {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[friendlyURL]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(friendlyURL)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.view
}

// Set stores the view for a friendly URL
func (c *ViewCache) Set(friendlyURL string, orgID uuid.UUID, view *models.PublicTrustView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[friendlyURL]; exists {
		entry.orgID = orgID
		entry.view = view
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		friendlyURL: friendlyURL,
		orgID:       orgID,
		view:        view,
		insertedAt:  time.Now(),
	}
	entry.element = c.lruList.PushFront(friendlyURL)
	c.entries[friendlyURL] = entry
}

// InvalidateOrg removes every view belonging to an organization
func (c *ViewCache) InvalidateOrg(orgID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.orgID == orgID {
			c.removeEntry(key)
		}
	}
}

// Stats returns cache statistics
func (c *ViewCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// removeEntry must be called with lock held
func (c *ViewCache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU must be called with lock held
func (c *ViewCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, key)
}

// CleanupExpired removes all expired entries
func (c *ViewCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			c.removeEntry(key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically drops expired entries until stopCh closes
func (c *ViewCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
