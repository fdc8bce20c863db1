// Package resolver turns a public path token into exactly one resolution outcome.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/core/service/outbox"
	"tapcard_server/pkg/logger"
	"tapcard_server/pkg/metrics"

	"github.com/google/uuid"
)

const (
	DefaultLookupTimeout = 6 * time.Second

	metricLookup = "resolve.lookup"
)

var errLookupTimeout = errors.New("profile lookup timed out")

type Config struct {
	LookupTimeout time.Duration
	Strategies    []Strategy
}

type Service struct {
	cards      out.CardRepository
	profiles   out.ProfileRepository
	recorder   *outbox.Recorder
	guard      out.VisitGuard
	latency    *metrics.Registry
	timeout    time.Duration
	strategies []Strategy
}

// NewService wires the resolver. guard and latency may be nil.
func NewService(
	cards out.CardRepository,
	profiles out.ProfileRepository,
	recorder *outbox.Recorder,
	guard out.VisitGuard,
	latency *metrics.Registry,
	cfg Config,
) *Service {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	return &Service{
		cards:      cards,
		profiles:   profiles,
		recorder:   recorder,
		guard:      guard,
		latency:    latency,
		timeout:    cfg.LookupTimeout,
		strategies: cfg.Strategies,
	}
}

var _ in.ResolveService = (*Service)(nil)

// visit is the view-once guard for a single resolution session.
type visit struct {
	id   string
	once sync.Once
}

// Resolve returns an error only when ctx itself is done; every other failure
// becomes a not_found (or timeout) outcome.
func (s *Service) Resolve(ctx context.Context, req *in.ResolveRequest) (*domain.Resolution, error) {
	token := strings.TrimSpace(strings.Trim(req.Token, "/"))
	if token == "" {
		return notFound(token), nil
	}

	v := &visit{id: req.VisitID}
	kind := Classify(token)

	if kind == domain.TokenCardUID {
		res, handled, err := s.resolveCard(ctx, req, v, token)
		if err != nil || handled {
			return res, err
		}
	}

	view, err := s.lookupWithin(ctx, func(ctx context.Context) (*domain.Profile, error) {
		return findFirst(ctx, s.profiles, s.strategies, token, kind)
	})
	return s.finish(ctx, req, v, token, view, err)
}

// resolveCard handles the card branch. handled is false when the token should
// fall through to the profile lookup.
func (s *Service) resolveCard(ctx context.Context, req *in.ResolveRequest, v *visit, uid string) (*domain.Resolution, bool, error) {
	card, err := s.cards.GetByUID(ctx, uid)
	if err != nil {
		if ctx.Err() != nil {
			return nil, true, ctx.Err()
		}
		if !errors.Is(err, out.ErrNotFound) {
			logger.WithError(err).Warn("[Resolver.resolveCard] card lookup failed for %s", uid)
		}
		return nil, false, nil
	}

	s.recorder.Tap(ctx, domain.NewCardTapLog(card.UID, domain.TapEventTapped, card.ProfileID))

	switch {
	case card.IsLinked():
		profileID := *card.ProfileID
		view, err := s.lookupWithin(ctx, func(ctx context.Context) (*domain.Profile, error) {
			return s.profiles.GetByID(ctx, profileID)
		})
		if err == nil && view.Profile.Username != nil && *view.Profile.Username != "" && !view.Profile.IsLocked {
			return &domain.Resolution{
				Outcome:  domain.OutcomeRedirect,
				Token:    uid,
				CardUID:  card.UID,
				Location: "/" + url.PathEscape(*view.Profile.Username),
			}, true, nil
		}
		res, err := s.finish(ctx, req, v, uid, view, err)
		if res != nil {
			res.CardUID = card.UID
		}
		return res, true, err

	case card.Status.Activatable():
		return &domain.Resolution{
			Outcome: domain.OutcomeActivationPrompt,
			Token:   uid,
			CardUID: card.UID,
		}, true, nil

	default:
		logger.Warn("[Resolver.resolveCard] card %s is %s without a profile", card.UID, card.Status)
		return notFound(uid), true, nil
	}
}

// finish maps a lookup result onto an outcome and records the view.
func (s *Service) finish(ctx context.Context, req *in.ResolveRequest, v *visit, token string, view *domain.ProfileView, err error) (*domain.Resolution, error) {
	switch {
	case err == nil:
	case errors.Is(err, errLookupTimeout):
		return &domain.Resolution{Outcome: domain.OutcomeTimeout, Token: token, Retryable: true}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, out.ErrNotFound):
		return notFound(token), nil
	default:
		logger.WithError(err).Error("[Resolver.Resolve] lookup failed for %q", token)
		return notFound(token), nil
	}

	if view.Profile.IsLocked {
		return &domain.Resolution{Outcome: domain.OutcomeLocked, Token: token}, nil
	}

	if req.Viewer == "" || req.Viewer != view.Profile.OwnerRef {
		s.recordView(ctx, v, view.Profile.ID)
	}

	return &domain.Resolution{Outcome: domain.OutcomeProfile, Token: token, Profile: view}, nil
}

// recordView logs at most one view per visit.
func (s *Service) recordView(ctx context.Context, v *visit, profileID uuid.UUID) {
	v.once.Do(func() {
		if v.id != "" && s.guard != nil {
			first, err := s.guard.FirstView(ctx, v.id+":"+profileID.String())
			if err != nil {
				logger.WithError(err).Warn("[Resolver.recordView] visit guard unavailable")
			} else if !first {
				return
			}
		}
		s.recorder.Analytics(ctx, domain.NewAnalyticsEvent(profileID, domain.AnalyticsView, v.id))
	})
}

type lookupResult struct {
	view *domain.ProfileView
	err  error
}

// lookupWithin races find plus projection against the lookup deadline. The
// goroutine is not waited for; its context is cancelled and its result dropped.
func (s *Service) lookupWithin(ctx context.Context, find func(context.Context) (*domain.Profile, error)) (*domain.ProfileView, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		p, err := find(lookupCtx)
		if err != nil {
			done <- lookupResult{err: err}
			return
		}
		done <- lookupResult{view: s.project(lookupCtx, p)}
	}()

	select {
	case r := <-done:
		s.observe(start)
		if r.err != nil && ctx.Err() == nil && errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			return nil, errLookupTimeout
		}
		return r.view, r.err
	case <-lookupCtx.Done():
		s.observe(start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errLookupTimeout
	}
}

// project derives branding, premium and section order for a matched profile.
func (s *Service) project(ctx context.Context, p *domain.Profile) *domain.ProfileView {
	view := &domain.ProfileView{
		Profile:          p,
		EffectivePremium: p.IsPremium,
		SectionOrder:     domain.NormalizeSectionOrder(p.SectionOrder),
	}

	if p.TeamID != nil {
		team, err := s.profiles.GetTeam(ctx, *p.TeamID)
		switch {
		case err == nil:
			view.Team = team
		case !errors.Is(err, out.ErrNotFound):
			logger.WithError(err).Warn("[Resolver.project] team %s unavailable", p.TeamID)
		}
	}
	view.Branding = domain.EffectiveBranding(p, view.Team)

	if !p.IsPremium && p.OwnerRef != "" {
		premium, err := s.profiles.AccountPremium(ctx, p.OwnerRef)
		if err != nil {
			logger.WithError(err).Warn("[Resolver.project] account premium lookup failed")
		} else {
			view.EffectivePremium = premium
		}
	}
	return view
}

func (s *Service) observe(start time.Time) {
	if s.latency != nil {
		s.latency.Observe(metricLookup, time.Since(start))
	}
}

func notFound(token string) *domain.Resolution {
	return &domain.Resolution{Outcome: domain.OutcomeNotFound, Token: token}
}
