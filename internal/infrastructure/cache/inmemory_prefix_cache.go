package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryPrefixCache implements PrefixCache in process memory.
// It suits single-instance deployments and tests; instances do not see each other's invalidations.
type InMemoryPrefixCache struct {
	entries sync.Map // map[string]*cacheEntry[invoicing.InvoicePrefix]
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

// NewInMemoryPrefixCache creates an in-memory prefix cache
func NewInMemoryPrefixCache(ttl time.Duration) *InMemoryPrefixCache {
	if ttl <= 0 {
		ttl = DefaultPrefixTTL
	}
	return &InMemoryPrefixCache{ttl: ttl, now: time.Now}
}

// Get retrieves the cached active prefix
func (c *InMemoryPrefixCache) Get(_ context.Context, tenantID, companyID uuid.UUID) (*invoicing.InvoicePrefix, error) {
	key := prefixCacheKey(tenantID, companyID)
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*cacheEntry[invoicing.InvoicePrefix])
		if !entry.isExpired(c.now()) {
			atomic.AddInt64(&c.hits, 1)
			prefix := entry.value
			return &prefix, nil
		}
		c.entries.Delete(key)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, nil
}

// Set stores an active prefix. Ended prefixes are never cached.
func (c *InMemoryPrefixCache) Set(_ context.Context, prefix *invoicing.InvoicePrefix) error {
	if prefix == nil || !prefix.IsActive() {
		return nil
	}
	c.entries.Store(prefixCacheKey(prefix.TenantID, prefix.CompanyID), &cacheEntry[invoicing.InvoicePrefix]{
		value:     *prefix,
		expiresAt: c.now().Add(c.ttl),
	})
	return nil
}

// Invalidate removes the cached prefix of a company
func (c *InMemoryPrefixCache) Invalidate(_ context.Context, tenantID, companyID uuid.UUID) error {
	c.entries.Delete(prefixCacheKey(tenantID, companyID))
	return nil
}

// Stats returns hit and miss counts
func (c *InMemoryPrefixCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}
