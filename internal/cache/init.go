package cache

import (
	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/logger"
	redisClient "github.com/renewly/renewly/internal/redis"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	// CacheTypeInMemory represents an in-memory cache
	CacheTypeInMemory CacheType = "inmemory"

	// CacheTypeRedis represents a Redis-backed cache
	CacheTypeRedis CacheType = "redis"
)

// Initialize builds the cache backend named by the configuration. The Redis
// backend requires a connected client; when one is missing the in-memory
// cache is used instead.
func Initialize(cfg *config.Configuration, log *logger.Logger, redis *redisClient.Client) Cache {
	switch CacheType(cfg.Cache.Type) {
	case CacheTypeRedis:
		if redis != nil {
			log.Infow("cache initialized", "type", CacheTypeRedis)
			return NewRedisCache(redis, log)
		}
		log.Warnw("redis cache requested but no redis client available, using in-memory cache")
		fallthrough
	default:
		log.Infow("cache initialized", "type", CacheTypeInMemory)
		return NewInMemoryCache(log)
	}
}
