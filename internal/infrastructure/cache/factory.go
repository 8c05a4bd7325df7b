package cache

import (
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewPrefixCache returns a Redis-backed cache when a client is available and
// falls back to process memory otherwise.
func NewPrefixCache(client *redis.Client, cfg config.InvoicingConfig, logger *zap.Logger) PrefixCache {
	if client == nil {
		logger.Warn("Redis unavailable, using in-memory prefix cache. Prefix changes on other instances are seen after the TTL.",
			zap.Duration("ttl", cfg.PrefixCacheTTL),
		)
		return NewInMemoryPrefixCache(cfg.PrefixCacheTTL)
	}
	logger.Info("Using Redis prefix cache", zap.Duration("ttl", cfg.PrefixCacheTTL))
	return NewRedisPrefixCache(client, cfg.PrefixCacheTTL, logger)
}
