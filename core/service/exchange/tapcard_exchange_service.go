// Package exchange stores contact details visitors leave on a profile.
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	exchanges out.ContactExchangeRepository
	profiles  out.ProfileRepository
}

func NewService(exchanges out.ContactExchangeRepository, profiles out.ProfileRepository) *Service {
	return &Service{
		exchanges: exchanges,
		profiles:  profiles,
	}
}

var _ in.ContactExchangeService = (*Service)(nil)

// Submit records a visitor's details against a profile. Locked profiles accept nothing.
func (s *Service) Submit(ctx context.Context, profileID uuid.UUID, req *in.SubmitExchangeRequest) (*domain.ContactExchange, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, out.ErrNotFound) {
		return nil, apperr.NotFound("profile")
	}
	if err != nil {
		return nil, apperr.DatabaseError("get profile", err)
	}
	if profile.IsLocked {
		return nil, apperr.ProfileLocked()
	}

	ex := &domain.ContactExchange{
		ID:          uuid.New(),
		CardOwnerID: profile.ID,
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       strings.TrimSpace(req.Phone),
		JobTitle:    strings.TrimSpace(req.JobTitle),
		Company:     strings.TrimSpace(req.Company),
		CreatedAt:   time.Now().UTC(),
	}
	if ex.Name == "" {
		return nil, apperr.InvalidInput("name", "is required")
	}
	if ex.Email == "" && ex.Phone == "" {
		return nil, apperr.InvalidInput("email", "email or phone is required")
	}

	if err := s.exchanges.Create(ctx, ex); err != nil {
		return nil, apperr.DatabaseError("create exchange", err)
	}
	logger.WithContext(ctx).Info("[ExchangeService.Submit] new exchange %s for profile %s", ex.ID, profile.ID)
	return ex, nil
}

// List returns the exchanges left on a profile the caller owns, newest first.
func (s *Service) List(ctx context.Context, ownerRef string, profileID uuid.UUID, limit, offset int) ([]*domain.ContactExchange, int, error) {
	if err := s.checkOwner(ctx, ownerRef, profileID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.exchanges.ListByOwner(ctx, profileID, limit, offset)
	if err != nil {
		return nil, 0, apperr.DatabaseError("list exchanges", err)
	}
	if items == nil {
		items = []*domain.ContactExchange{}
	}
	return items, total, nil
}

func (s *Service) Delete(ctx context.Context, ownerRef string, id uuid.UUID) error {
	ex, err := s.exchanges.GetByID(ctx, id)
	if errors.Is(err, out.ErrNotFound) {
		return apperr.NotFound("exchange")
	}
	if err != nil {
		return apperr.DatabaseError("get exchange", err)
	}
	if err := s.checkOwner(ctx, ownerRef, ex.CardOwnerID); err != nil {
		return err
	}
	if err := s.exchanges.Delete(ctx, id); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("exchange")
		}
		return apperr.DatabaseError("delete exchange", err)
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, ownerRef string, profileID uuid.UUID) error {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, out.ErrNotFound) {
		return apperr.NotFound("profile")
	}
	if err != nil {
		return apperr.DatabaseError("get profile", err)
	}
	if profile.OwnerRef != ownerRef {
		return apperr.Forbidden("you do not own this profile")
	}
	return nil
}
