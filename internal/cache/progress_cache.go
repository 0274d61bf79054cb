package cache

import (
	"context"
	"sync"
	"time"

	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// ProgressCache fronts RelationshipProgress reads with a bounded TTL.
// Writers must Set or Invalidate synchronously with the durable write so the
// cache never serves progression data older than one TTL window.
type ProgressCache interface {
	Get(ctx context.Context, userID, companionID string) (*progress.RelationshipProgress, bool)
	Set(ctx context.Context, p *progress.RelationshipProgress)
	Invalidate(ctx context.Context, userID, companionID string)
}

func cacheKey(userID, companionID string) string {
	return "progress:" + userID + ":" + companionID
}

type memoryEntry struct {
	value     progress.RelationshipProgress
	expiresAt time.Time
}

// MemoryCache is the in-process cache used when no Redis address is
// configured. A janitor goroutine evicts expired entries periodically;
// eviction is housekeeping only, expiry is checked on every read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache 创建内存缓存并启动后台清理。
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// cloneProgress copies the row including its slice fields. A plain struct
// copy would leave RecentQualities and Milestones sharing backing arrays
// with the cached entry, so two readers appending through spare capacity
// would race each other.
func cloneProgress(p *progress.RelationshipProgress) progress.RelationshipProgress {
	cloned := *p
	if p.RecentQualities != nil {
		cloned.RecentQualities = append(progress.QualityWindow(nil), p.RecentQualities...)
	}
	if p.Milestones != nil {
		cloned.Milestones = append(progress.StringSet(nil), p.Milestones...)
	}
	return cloned
}

// Get returns a copy of the cached progress when present and fresh. The
// caller owns the returned row outright, slices included.
func (c *MemoryCache) Get(_ context.Context, userID, companionID string) (*progress.RelationshipProgress, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(userID, companionID)]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	value := cloneProgress(&entry.value)
	return &value, true
}

// Set stores a copy of the progress under the pair key, detached from the
// caller's slices so later mutations by the caller cannot reach the entry.
func (c *MemoryCache) Set(_ context.Context, p *progress.RelationshipProgress) {
	c.mu.Lock()
	c.entries[cacheKey(p.UserID, p.CompanionID)] = memoryEntry{
		value:     cloneProgress(p),
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate drops the pair's entry.
func (c *MemoryCache) Invalidate(_ context.Context, userID, companionID string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(userID, companionID))
	c.mu.Unlock()
}

// Close stops the janitor goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) janitor() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
