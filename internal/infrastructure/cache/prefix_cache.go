package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefixTTL bounds how long a cached active prefix may be served
const DefaultPrefixTTL = 10 * time.Minute

// PrefixCache holds the active invoice prefix of a company.
// Get returns (nil, nil) on a miss.
type PrefixCache interface {
	Get(ctx context.Context, tenantID, companyID uuid.UUID) (*invoicing.InvoicePrefix, error)
	Set(ctx context.Context, prefix *invoicing.InvoicePrefix) error
	Invalidate(ctx context.Context, tenantID, companyID uuid.UUID) error
}

func prefixCacheKey(tenantID, companyID uuid.UUID) string {
	return fmt.Sprintf("invoice_prefix:%s:%s", tenantID, companyID)
}

// RedisPrefixCache implements PrefixCache using Redis
type RedisPrefixCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPrefixCache creates a cache on an existing client. The caller keeps ownership of the client.
func NewRedisPrefixCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPrefixCache {
	if ttl <= 0 {
		ttl = DefaultPrefixTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPrefixCache{client: client, ttl: ttl, logger: logger}
}

// Get retrieves the cached active prefix
func (c *RedisPrefixCache) Get(ctx context.Context, tenantID, companyID uuid.UUID) (*invoicing.InvoicePrefix, error) {
	key := prefixCacheKey(tenantID, companyID)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss for invoice prefix", zap.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prefix from cache: %w", err)
	}

	var prefix invoicing.InvoicePrefix
	if err := json.Unmarshal(data, &prefix); err != nil {
		c.logger.Warn("Dropping corrupted prefix cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, nil
	}
	return &prefix, nil
}

// Set stores an active prefix. Ended prefixes are never cached.
func (c *RedisPrefixCache) Set(ctx context.Context, prefix *invoicing.InvoicePrefix) error {
	if prefix == nil || !prefix.IsActive() {
		return nil
	}
	data, err := json.Marshal(prefix)
	if err != nil {
		return fmt.Errorf("failed to marshal prefix: %w", err)
	}
	if err := c.client.Set(ctx, prefixCacheKey(prefix.TenantID, prefix.CompanyID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set prefix in cache: %w", err)
	}
	return nil
}

// Invalidate removes the cached prefix of a company
func (c *RedisPrefixCache) Invalidate(ctx context.Context, tenantID, companyID uuid.UUID) error {
	if err := c.client.Del(ctx, prefixCacheKey(tenantID, companyID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate prefix cache: %w", err)
	}
	return nil
}
