// Package session keeps short-lived per-visit state in Redis.
package session

import (
	"context"
	"time"

	"tapcard_server/core/port/out"
	"tapcard_server/pkg/cache"
)

const defaultVisitTTL = 30 * time.Minute

// VisitGuard implements out.VisitGuard with SET NX on a per-visit key.
type VisitGuard struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewVisitGuard(redisCache *cache.RedisCache, ttl time.Duration) *VisitGuard {
	if ttl <= 0 {
		ttl = defaultVisitTTL
	}
	return &VisitGuard{cache: redisCache, ttl: ttl}
}

var _ out.VisitGuard = (*VisitGuard)(nil)

func (g *VisitGuard) FirstView(ctx context.Context, key string) (bool, error) {
	return g.cache.SetIfAbsent(ctx, "visit:"+key, g.ttl)
}
