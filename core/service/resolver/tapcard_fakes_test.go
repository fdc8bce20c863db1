package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"

	"github.com/google/uuid"
)

type fakeCards struct {
	cards map[string]*domain.PhysicalCard
}

func (f *fakeCards) GetByUID(_ context.Context, uid string) (*domain.PhysicalCard, error) {
	c, ok := f.cards[uid]
	if !ok {
		return nil, out.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCards) Activate(context.Context, string, uuid.UUID, int64) (*domain.PhysicalCard, error) {
	return nil, errors.New("not used")
}

func (f *fakeCards) Delink(context.Context, string, int64) (*domain.PhysicalCard, error) {
	return nil, errors.New("not used")
}

func (f *fakeCards) InsertBatch(context.Context, []string) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakeCards) ListByProfiles(context.Context, []uuid.UUID) ([]*domain.PhysicalCard, error) {
	return nil, errors.New("not used")
}

type fakeProfiles struct {
	profiles []*domain.Profile
	teams    map[uuid.UUID]*domain.Team
	findErr  error
	block    bool

	mu      sync.Mutex
	matches []out.ProfileMatch
}

func (f *fakeProfiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeProfiles) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	for _, p := range f.profiles {
		if p.Username != nil && *p.Username == username {
			return p, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeProfiles) FindFirst(ctx context.Context, match out.ProfileMatch) (*domain.Profile, error) {
	f.mu.Lock()
	f.matches = append(f.matches, match)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.findErr != nil {
		return nil, f.findErr
	}

	var hits []*domain.Profile
	for _, p := range f.profiles {
		var v string
		switch match.Field {
		case out.ProfileFieldID:
			v = p.ID.String()
		case out.ProfileFieldUsername:
			if p.Username != nil {
				v = strings.ToLower(*p.Username)
			}
		case out.ProfileFieldOwnerRef:
			v = p.OwnerRef
		}
		if v != "" && v == match.Value {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return nil, out.ErrNotFound
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		if a.IsPremium != b.IsPremium {
			return a.IsPremium
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return hits[0], nil
}

func (f *fakeProfiles) ListByOwner(_ context.Context, ownerRef string) ([]*domain.Profile, error) {
	var res []*domain.Profile
	for _, p := range f.profiles {
		if p.OwnerRef == ownerRef {
			res = append(res, p)
		}
	}
	return res, nil
}

func (f *fakeProfiles) AccountPremium(_ context.Context, ownerRef string) (bool, error) {
	for _, p := range f.profiles {
		if p.OwnerRef == ownerRef && p.IsPremium {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProfiles) ClaimUsername(context.Context, uuid.UUID, string, int64) (*domain.Profile, error) {
	return nil, errors.New("not used")
}

func (f *fakeProfiles) GetTeam(_ context.Context, id uuid.UUID) (*domain.Team, error) {
	if t, ok := f.teams[id]; ok {
		return t, nil
	}
	return nil, out.ErrNotFound
}

type fakePublisher struct {
	mu        sync.Mutex
	taps      []*domain.CardTapLog
	analytics []*domain.AnalyticsEvent
}

func (f *fakePublisher) PublishTap(_ context.Context, entry *domain.CardTapLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps = append(f.taps, entry)
	return nil
}

func (f *fakePublisher) PublishAnalytics(_ context.Context, event *domain.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analytics = append(f.analytics, event)
	return nil
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryGuard) FirstView(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}
