package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/cache"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPremiumTTL = 10 * time.Minute
	teamTTL           = 30 * time.Minute
	negativeTTL       = 2 * time.Minute
)

// CachedProfileAdapter caches the account-premium flag and team branding in
// Redis. Profile rows themselves are never cached so lock and username changes
// are seen immediately.
type CachedProfileAdapter struct {
	out.ProfileRepository
	cache      *cache.RedisCache
	premiumTTL time.Duration
	flight     singleflight.Group
}

// NewCachedProfileAdapter wraps delegate with Redis caching.
func NewCachedProfileAdapter(delegate out.ProfileRepository, redisCache *cache.RedisCache, premiumTTL time.Duration) *CachedProfileAdapter {
	if premiumTTL <= 0 {
		premiumTTL = defaultPremiumTTL
	}
	return &CachedProfileAdapter{
		ProfileRepository: delegate,
		cache:             redisCache,
		premiumTTL:        premiumTTL,
	}
}

func premiumCacheKey(ownerRef string) string {
	return fmt.Sprintf("premium:%s", ownerRef)
}

func teamCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("team:%s", id)
}

// AccountPremium reads through the cache; concurrent misses share one query.
func (a *CachedProfileAdapter) AccountPremium(ctx context.Context, ownerRef string) (bool, error) {
	key := premiumCacheKey(ownerRef)

	var premium bool
	if found, err := a.cache.GetJSON(ctx, key, &premium); err == nil && found {
		return premium, nil
	}

	v, err, _ := a.flight.Do(key, func() (any, error) {
		premium, err := a.ProfileRepository.AccountPremium(ctx, ownerRef)
		if err != nil {
			return false, err
		}
		_ = a.cache.SetJSON(ctx, key, premium, a.premiumTTL)
		return premium, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetTeam caches teams, including misses.
func (a *CachedProfileAdapter) GetTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	key := teamCacheKey(id)

	var team domain.Team
	if found, err := a.cache.GetJSON(ctx, key, &team); err == nil && found {
		// zero id marks a cached miss
		if team.ID == uuid.Nil {
			return nil, ErrNotFound
		}
		return &team, nil
	}

	result, err := a.ProfileRepository.GetTeam(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = a.cache.SetJSON(ctx, key, &domain.Team{}, negativeTTL)
		return nil, err
	case err != nil:
		return nil, err
	}
	_ = a.cache.SetJSON(ctx, key, result, teamTTL)
	return result, nil
}
