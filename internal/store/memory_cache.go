package store

import (
	"context"
	"sync"
	"time"

	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

// MemoryCache is a TTL bound in-process TenantCache
type MemoryCache struct {
	tenants map[string]*cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	tenant    model.Tenant
	expiresAt time.Time
}

// NewMemoryCache creates a cache evicting entries after ttl. A maxSize of
// zero leaves the cache unbounded.
func NewMemoryCache(ttl time.Duration, maxSize int) *MemoryCache {
	c := &MemoryCache{
		tenants: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// GetTenant retrieves a tenant from cache
func (c *MemoryCache) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.tenants[tenantID]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	tenant := entry.tenant
	return &tenant, true
}

// SetTenant stores a tenant in cache
func (c *MemoryCache) SetTenant(ctx context.Context, tenant *model.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tenants[tenant.TenantID]; !exists && c.maxSize > 0 && len(c.tenants) >= c.maxSize {
		c.evictLocked()
	}

	entry := &cacheEntry{
		tenant:    *tenant,
		expiresAt: time.Now().Add(c.ttl),
	}
	entry.tenant.EncryptedSecret = ""
	c.tenants[tenant.TenantID] = entry
}

// DeleteTenant removes a tenant from cache
func (c *MemoryCache) DeleteTenant(ctx context.Context, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tenants, tenantID)
}

// Size returns the number of entries in cache
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tenants)
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// evictLocked drops the entry closest to expiry
func (c *MemoryCache) evictLocked() {
	var (
		victim string
		oldest time.Time
	)
	for id, entry := range c.tenants {
		if victim == "" || entry.expiresAt.Before(oldest) {
			victim, oldest = id, entry.expiresAt
		}
	}
	delete(c.tenants, victim)
}

// cleanup periodically removes expired entries
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for tenantID, entry := range c.tenants {
				if now.After(entry.expiresAt) {
					delete(c.tenants, tenantID)
				}
			}
			c.mu.Unlock()
		}
	}
}
