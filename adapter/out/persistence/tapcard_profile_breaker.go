package persistence

import (
	"context"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// BreakerProfileAdapter guards the public read path with a circuit breaker so
// a struggling database fails resolutions fast instead of piling up requests.
type BreakerProfileAdapter struct {
	out.ProfileRepository
	cb *gobreaker.CircuitBreaker
}

// NewBreakerProfileAdapter wraps delegate. Not-found results count as successes.
func NewBreakerProfileAdapter(delegate out.ProfileRepository) *BreakerProfileAdapter {
	cfg := resilience.DefaultBreakerConfig("profile-reads")
	cfg.MaxRequests = 3
	cfg.Timeout = 15 * time.Second
	cfg.ConsecutiveFailures = 6
	cfg.FailureRatio = 0.6
	cfg.MinRequests = 20
	cfg.Benign = []error{ErrNotFound}
	return &BreakerProfileAdapter{
		ProfileRepository: delegate,
		cb:                resilience.NewBreaker(cfg),
	}
}

func breakProfile(cb *gobreaker.CircuitBreaker, fn func() (*domain.Profile, error)) (*domain.Profile, error) {
	v, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return v.(*domain.Profile), nil
}

func (a *BreakerProfileAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return breakProfile(a.cb, func() (*domain.Profile, error) {
		return a.ProfileRepository.GetByID(ctx, id)
	})
}

func (a *BreakerProfileAdapter) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	return breakProfile(a.cb, func() (*domain.Profile, error) {
		return a.ProfileRepository.GetByUsername(ctx, username)
	})
}

func (a *BreakerProfileAdapter) FindFirst(ctx context.Context, match out.ProfileMatch) (*domain.Profile, error) {
	return breakProfile(a.cb, func() (*domain.Profile, error) {
		return a.ProfileRepository.FindFirst(ctx, match)
	})
}

// State reports the breaker state for readiness checks.
func (a *BreakerProfileAdapter) State() string {
	return a.cb.State().String()
}
