package cache

import (
	"errors"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/ports"
	"github.com/seu-repo/plugwatch/pkg/config"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// New returns a Redis-backed cache when enabled and reachable, and the local
// cache otherwise.
func New(redisCfg config.RedisConfig, cacheCfg config.CacheConfig, log *zap.Logger) ports.Cache {
	if redisCfg.Enabled && redisCfg.URL != "" {
		c, err := NewRedisCache(redisCfg.URL, log)
		if err == nil {
			return c
		}
		log.Warn("Redis unavailable, falling back to local cache", zap.Error(err))
	}
	return NewLocalCache(cacheCfg.CleanupInterval, log)
}
