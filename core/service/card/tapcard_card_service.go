// Package card links physical cards to profiles and back.
package card

import (
	"context"
	"errors"
	"net/url"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/core/service/outbox"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	cards    out.CardRepository
	profiles out.ProfileRepository
	recorder *outbox.Recorder
}

func NewService(cards out.CardRepository, profiles out.ProfileRepository, recorder *outbox.Recorder) *Service {
	return &Service{
		cards:    cards,
		profiles: profiles,
		recorder: recorder,
	}
}

var _ in.CardService = (*Service)(nil)

// Activate links an unactivated card to the caller's primary profile, else
// their oldest one. A card that is already ACTIVATED is never relinked.
func (s *Service) Activate(ctx context.Context, ownerRef, cardUID string) (*domain.ActivationResult, error) {
	if ownerRef == "" {
		return nil, apperr.Unauthorized("sign in to activate a card")
	}
	card, err := s.get(ctx, cardUID)
	if err != nil {
		return nil, err
	}
	if !card.Status.Activatable() {
		return nil, apperr.ActivationConflict(card.UID)
	}

	owned, err := s.profiles.ListByOwner(ctx, ownerRef)
	if err != nil {
		return nil, apperr.DatabaseError("list profiles", err)
	}
	if len(owned) == 0 {
		return &domain.ActivationResult{
			Outcome: domain.ActivationNeedsProfile,
			CardUID: card.UID,
		}, nil
	}
	target := pickProfile(owned)

	updated, err := s.cards.Activate(ctx, card.UID, target.ID, card.Version)
	switch {
	case errors.Is(err, out.ErrConflict):
		return nil, apperr.ActivationConflict(card.UID)
	case errors.Is(err, out.ErrNotFound):
		return nil, apperr.NotFound("card")
	case err != nil:
		return nil, apperr.DatabaseError("activate card", err)
	}

	logger.WithContext(ctx).Info("[CardService.Activate] %s linked to profile %s", updated.UID, target.ID)
	s.recorder.TapSync(ctx, domain.NewCardTapLog(updated.UID, domain.TapEventActivated, &target.ID))

	res := &domain.ActivationResult{
		Outcome:   domain.ActivationLinked,
		CardUID:   updated.UID,
		ProfileID: &target.ID,
		Location:  "/" + url.PathEscape(target.Handle()),
	}
	if target.Username != nil {
		res.Username = *target.Username
	}
	return res, nil
}

// pickProfile expects profiles ordered is_primary desc, created_at asc.
func pickProfile(owned []*domain.Profile) *domain.Profile {
	for _, p := range owned {
		if p.IsPrimary {
			return p
		}
	}
	return owned[0]
}

// Delink detaches a card from a profile the caller owns.
func (s *Service) Delink(ctx context.Context, ownerRef, cardUID string) (*domain.PhysicalCard, error) {
	card, err := s.get(ctx, cardUID)
	if err != nil {
		return nil, err
	}
	if !card.IsLinked() {
		return nil, apperr.Conflict("card is not activated")
	}

	profile, err := s.profiles.GetByID(ctx, *card.ProfileID)
	if err != nil && !errors.Is(err, out.ErrNotFound) {
		return nil, apperr.DatabaseError("get profile", err)
	}
	if profile == nil || profile.OwnerRef != ownerRef {
		return nil, apperr.Forbidden("card is linked to a profile you do not own")
	}
	return s.delink(ctx, card)
}

// OperatorDelink detaches a card without an ownership check.
func (s *Service) OperatorDelink(ctx context.Context, cardUID string) (*domain.PhysicalCard, error) {
	card, err := s.get(ctx, cardUID)
	if err != nil {
		return nil, err
	}
	if !card.IsLinked() {
		return nil, apperr.Conflict("card is not activated")
	}
	return s.delink(ctx, card)
}

func (s *Service) delink(ctx context.Context, card *domain.PhysicalCard) (*domain.PhysicalCard, error) {
	previous := *card.ProfileID
	updated, err := s.cards.Delink(ctx, card.UID, card.Version)
	switch {
	case errors.Is(err, out.ErrConflict):
		return nil, apperr.Conflict("card was changed concurrently").WithDetail("card_uid", card.UID)
	case errors.Is(err, out.ErrNotFound):
		return nil, apperr.NotFound("card")
	case err != nil:
		return nil, apperr.DatabaseError("delink card", err)
	}

	logger.WithContext(ctx).Info("[CardService.Delink] %s detached from profile %s", updated.UID, previous)
	s.recorder.TapSync(ctx, domain.NewCardTapLog(updated.UID, domain.TapEventDelinked, &previous))
	return updated, nil
}

// Get returns a card by uid.
func (s *Service) Get(ctx context.Context, cardUID string) (*domain.PhysicalCard, error) {
	return s.get(ctx, cardUID)
}

// ListMine returns every card linked to a profile the caller owns.
func (s *Service) ListMine(ctx context.Context, ownerRef string) ([]*domain.PhysicalCard, error) {
	owned, err := s.profiles.ListByOwner(ctx, ownerRef)
	if err != nil {
		return nil, apperr.DatabaseError("list profiles", err)
	}
	if len(owned) == 0 {
		return []*domain.PhysicalCard{}, nil
	}
	ids := make([]uuid.UUID, len(owned))
	for i, p := range owned {
		ids[i] = p.ID
	}
	cards, err := s.cards.ListByProfiles(ctx, ids)
	if err != nil {
		return nil, apperr.DatabaseError("list cards", err)
	}
	return cards, nil
}

func (s *Service) get(ctx context.Context, cardUID string) (*domain.PhysicalCard, error) {
	if !domain.IsCardUID(cardUID) {
		return nil, apperr.InvalidInput("card_uid", "must be two uppercase letters followed by three digits")
	}
	card, err := s.cards.GetByUID(ctx, cardUID)
	if errors.Is(err, out.ErrNotFound) {
		return nil, apperr.NotFound("card")
	}
	if err != nil {
		return nil, apperr.DatabaseError("get card", err)
	}
	return card, nil
}
