// Package profile serves owner-side profile operations.
package profile

import (
	"context"
	"errors"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"

	"github.com/google/uuid"
)

const maxStatsDays = 366

type Service struct {
	profiles  out.ProfileRepository
	analytics out.AnalyticsRepository
}

func NewService(profiles out.ProfileRepository, analytics out.AnalyticsRepository) *Service {
	return &Service{
		profiles:  profiles,
		analytics: analytics,
	}
}

var _ in.ProfileService = (*Service)(nil)

func (s *Service) ListMine(ctx context.Context, ownerRef string) ([]*domain.Profile, error) {
	profiles, err := s.profiles.ListByOwner(ctx, ownerRef)
	if err != nil {
		return nil, apperr.DatabaseError("list profiles", err)
	}
	if profiles == nil {
		profiles = []*domain.Profile{}
	}
	return profiles, nil
}

// ClaimUsername sets a profile's username. The unique index on the normalized
// username decides races; the pre-check only gives an early answer.
func (s *Service) ClaimUsername(ctx context.Context, ownerRef string, req *in.ClaimUsernameRequest) (*domain.Profile, error) {
	username, err := ValidateUsername(req.Username)
	if err != nil {
		return nil, err
	}

	profile, err := s.Owned(ctx, ownerRef, req.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile.Username != nil && *profile.Username == username {
		return profile, nil
	}

	existing, err := s.profiles.GetByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != profile.ID:
		return nil, apperr.DuplicateUsername(username)
	case err != nil && !errors.Is(err, out.ErrNotFound):
		return nil, apperr.DatabaseError("lookup username", err)
	}

	updated, err := s.profiles.ClaimUsername(ctx, profile.ID, username, req.Version)
	switch {
	case errors.Is(err, out.ErrDuplicate):
		return nil, apperr.DuplicateUsername(username)
	case errors.Is(err, out.ErrConflict):
		return nil, apperr.Conflict("profile was modified, reload and try again").WithDetail("profile_id", profile.ID.String())
	case err != nil:
		return nil, apperr.DatabaseError("claim username", err)
	}

	logger.WithContext(ctx).Info("[ProfileService.ClaimUsername] profile %s is now %s", updated.ID, username)
	return updated, nil
}

// Owned returns the profile if ownerRef owns it.
func (s *Service) Owned(ctx context.Context, ownerRef string, profileID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, out.ErrNotFound) {
		return nil, apperr.NotFound("profile")
	}
	if err != nil {
		return nil, apperr.DatabaseError("get profile", err)
	}
	if profile.OwnerRef != ownerRef {
		return nil, apperr.Forbidden("you do not own this profile")
	}
	return profile, nil
}

// Stats returns the daily rollup for the last days days, today included.
func (s *Service) Stats(ctx context.Context, ownerRef string, profileID uuid.UUID, days int) ([]*domain.ProfileDailyStats, error) {
	if days <= 0 || days > maxStatsDays {
		return nil, apperr.InvalidInput("days", "must be between 1 and 366")
	}
	if _, err := s.Owned(ctx, ownerRef, profileID); err != nil {
		return nil, err
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -(days - 1))
	stats, err := s.analytics.DailyStats(ctx, profileID, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("daily stats", err)
	}
	if stats == nil {
		stats = []*domain.ProfileDailyStats{}
	}
	return stats, nil
}
