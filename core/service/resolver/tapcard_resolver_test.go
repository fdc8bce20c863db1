package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/service/outbox"
	"tapcard_server/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func strPtr(s string) *string { return &s }

type fixture struct {
	cards     *fakeCards
	profiles  *fakeProfiles
	publisher *fakePublisher
	recorder  *outbox.Recorder
	svc       *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		cards:     &fakeCards{cards: map[string]*domain.PhysicalCard{}},
		profiles:  &fakeProfiles{teams: map[uuid.UUID]*domain.Team{}},
		publisher: &fakePublisher{},
	}
	f.recorder = outbox.NewRecorder(f.publisher, time.Second)
	f.svc = NewService(f.cards, f.profiles, f.recorder, &memoryGuard{}, metrics.NewRegistry(32), cfg)
	return f
}

func (f *fixture) resolve(t *testing.T, token, visitID string) *domain.Resolution {
	t.Helper()
	res, err := f.svc.Resolve(context.Background(), &in.ResolveRequest{Token: token, VisitID: visitID})
	f.recorder.Flush()
	if err != nil {
		t.Fatalf("Resolve(%q) error: %v", token, err)
	}
	return res
}

func TestClassify(t *testing.T) {
	tests := []struct {
		token string
		want  domain.TokenKind
	}{
		{"AB123", domain.TokenCardUID},
		{"ZZ999", domain.TokenCardUID},
		{"ab123", domain.TokenPlainHandle},
		{"AB1234", domain.TokenPlainHandle},
		{"A1234", domain.TokenPlainHandle},
		{"3f2504e0-4f89-41d3-9a0c-0305e82c3301", domain.TokenUUID},
		{"3F2504E0-4F89-41D3-9A0C-0305E82C3301", domain.TokenUUID},
		{"3f2504e04f8941d39a0c0305e82c3301", domain.TokenPlainHandle},
		{"{3f2504e0-4f89-41d3-9a0c-0305e82c3301}", domain.TokenPlainHandle},
		{"alice", domain.TokenPlainHandle},
		{"", domain.TokenPlainHandle},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := Classify(tt.token); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestResolve_CardBranch(t *testing.T) {
	alice := &domain.Profile{ID: uuid.New(), Username: strPtr("alice"), OwnerRef: "u1"}
	anon := &domain.Profile{ID: uuid.New(), OwnerRef: "u2", DisplayName: "Anon"}

	tests := []struct {
		name         string
		card         *domain.PhysicalCard
		wantOutcome  domain.Outcome
		wantLocation string
		wantViews    int
	}{
		{
			name:         "activated card with username redirects",
			card:         &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusActivated, ProfileID: &alice.ID},
			wantOutcome:  domain.OutcomeRedirect,
			wantLocation: "/alice",
		},
		{
			name:        "activated card without username renders by id",
			card:        &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusActivated, ProfileID: &anon.ID},
			wantOutcome: domain.OutcomeProfile,
			wantViews:   1,
		},
		{
			name:        "unactivated card prompts activation",
			card:        &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusUnactivated},
			wantOutcome: domain.OutcomeActivationPrompt,
		},
		{
			name:        "in-process card prompts activation",
			card:        &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusInProcess},
			wantOutcome: domain.OutcomeActivationPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{})
			f.profiles.profiles = []*domain.Profile{alice, anon}
			f.cards.cards[tt.card.UID] = tt.card

			res := f.resolve(t, "AB123", "")

			if res.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %s, want %s", res.Outcome, tt.wantOutcome)
			}
			if res.Location != tt.wantLocation {
				t.Errorf("location = %q, want %q", res.Location, tt.wantLocation)
			}
			if res.CardUID != "AB123" {
				t.Errorf("card uid = %q", res.CardUID)
			}
			if len(f.publisher.taps) != 1 || f.publisher.taps[0].Event != domain.TapEventTapped {
				t.Errorf("taps = %+v, want one TAPPED", f.publisher.taps)
			}
			if len(f.publisher.analytics) != tt.wantViews {
				t.Errorf("views = %d, want %d", len(f.publisher.analytics), tt.wantViews)
			}
			if len(f.profiles.matches) != 0 {
				t.Errorf("profile strategies ran: %+v", f.profiles.matches)
			}
		})
	}
}

func TestResolve_MissingCardFallsThroughToUsername(t *testing.T) {
	f := newFixture(Config{})
	p := &domain.Profile{ID: uuid.New(), Username: strPtr("ab123"), OwnerRef: "u1"}
	f.profiles.profiles = []*domain.Profile{p}

	res := f.resolve(t, "AB123", "")

	if res.Outcome != domain.OutcomeProfile || res.Profile.Profile.ID != p.ID {
		t.Fatalf("got %+v, want profile %s", res, p.ID)
	}
	if len(f.publisher.taps) != 0 {
		t.Errorf("unexpected tap log for missing card")
	}
}

func TestResolve_StrategyPriority(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	byID := &domain.Profile{ID: uuid.MustParse("3f2504e0-4f89-41d3-9a0c-0305e82c3301"), OwnerRef: "x", CreatedAt: base}
	byName := &domain.Profile{ID: uuid.New(), Username: strPtr("carol"), OwnerRef: "y", CreatedAt: base}
	ownerOld := &domain.Profile{ID: uuid.New(), OwnerRef: "carol", CreatedAt: base}
	ownerPrimary := &domain.Profile{ID: uuid.New(), OwnerRef: "dave", IsPrimary: true, CreatedAt: base.Add(time.Hour)}
	ownerPremium := &domain.Profile{ID: uuid.New(), OwnerRef: "dave", IsPremium: true, CreatedAt: base}
	ownerFirst := &domain.Profile{ID: uuid.New(), OwnerRef: "erin", CreatedAt: base}
	ownerSecond := &domain.Profile{ID: uuid.New(), OwnerRef: "erin", CreatedAt: base.Add(time.Minute)}

	tests := []struct {
		name  string
		token string
		want  uuid.UUID
	}{
		{"uuid matches id", "3F2504E0-4F89-41D3-9A0C-0305E82C3301", byID.ID},
		{"username beats owner_ref", "Carol", byName.ID},
		{"username with whitespace", "  carol ", byName.ID},
		{"primary beats premium", "dave", ownerPrimary.ID},
		{"earliest created wins ties", "erin", ownerFirst.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{})
			f.profiles.profiles = []*domain.Profile{byID, byName, ownerOld, ownerPremium, ownerPrimary, ownerSecond, ownerFirst}

			res := f.resolve(t, tt.token, "")
			if res.Outcome != domain.OutcomeProfile {
				t.Fatalf("outcome = %s, want profile", res.Outcome)
			}
			if res.Profile.Profile.ID != tt.want {
				t.Errorf("profile = %s, want %s", res.Profile.Profile.ID, tt.want)
			}
		})
	}
}

func TestResolve_IDStrategyOnlyForUUIDs(t *testing.T) {
	f := newFixture(Config{})
	f.resolve(t, "alice", "")

	for _, m := range f.profiles.matches {
		if m.Field == "id" {
			t.Fatalf("id strategy ran for a plain handle: %+v", f.profiles.matches)
		}
	}
	if len(f.profiles.matches) != 2 {
		t.Errorf("matches = %d, want username and owner_ref", len(f.profiles.matches))
	}
}

func TestResolve_NotFoundAndFailClosed(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		f := newFixture(Config{})
		if res := f.resolve(t, "nobody", ""); res.Outcome != domain.OutcomeNotFound {
			t.Errorf("outcome = %s, want not_found", res.Outcome)
		}
	})

	t.Run("repository error", func(t *testing.T) {
		f := newFixture(Config{})
		f.profiles.findErr = errors.New("connection reset")
		res := f.resolve(t, "alice", "")
		if res.Outcome != domain.OutcomeNotFound {
			t.Errorf("outcome = %s, want not_found", res.Outcome)
		}
		if len(f.publisher.analytics) != 0 {
			t.Error("view recorded for a failed lookup")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		f := newFixture(Config{})
		if res := f.resolve(t, " / ", ""); res.Outcome != domain.OutcomeNotFound {
			t.Errorf("outcome = %s, want not_found", res.Outcome)
		}
	})
}

func TestResolve_Timeout(t *testing.T) {
	f := newFixture(Config{LookupTimeout: 20 * time.Millisecond})
	f.profiles.block = true

	start := time.Now()
	res := f.resolve(t, "alice", "")

	if res.Outcome != domain.OutcomeTimeout {
		t.Fatalf("outcome = %s, want timeout", res.Outcome)
	}
	if !res.Retryable {
		t.Error("timeout should be retryable")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("resolve took %v", elapsed)
	}
}

func TestResolve_LinkedCardTimeout(t *testing.T) {
	f := newFixture(Config{LookupTimeout: 20 * time.Millisecond})
	id := uuid.New()
	f.cards.cards["AB123"] = &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusActivated, ProfileID: &id}
	f.profiles.block = true

	if res := f.resolve(t, "AB123", ""); res.Outcome != domain.OutcomeTimeout {
		t.Fatalf("outcome = %s, want timeout", res.Outcome)
	}
}

func TestResolve_CallerCancelled(t *testing.T) {
	f := newFixture(Config{})
	f.profiles.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.svc.Resolve(ctx, &in.ResolveRequest{Token: "alice"})
	f.recorder.Flush()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline", err)
	}
}

func TestResolve_LockedOverridesProfile(t *testing.T) {
	f := newFixture(Config{})
	p := &domain.Profile{ID: uuid.New(), Username: strPtr("locked"), OwnerRef: "u1", IsLocked: true}
	f.profiles.profiles = []*domain.Profile{p}
	f.cards.cards["AB123"] = &domain.PhysicalCard{UID: "AB123", Status: domain.CardStatusActivated, ProfileID: &p.ID}

	for _, token := range []string{"locked", "AB123"} {
		res := f.resolve(t, token, "")
		if res.Outcome != domain.OutcomeLocked {
			t.Errorf("Resolve(%q) outcome = %s, want locked", token, res.Outcome)
		}
		if res.Profile != nil {
			t.Errorf("locked resolution leaked the profile")
		}
	}
	if len(f.publisher.analytics) != 0 {
		t.Errorf("views = %d, want 0", len(f.publisher.analytics))
	}
}

func TestResolve_ViewOncePerVisit(t *testing.T) {
	f := newFixture(Config{})
	f.profiles.profiles = []*domain.Profile{{ID: uuid.New(), Username: strPtr("alice"), OwnerRef: "u1"}}

	f.resolve(t, "alice", "visit-1")
	f.resolve(t, "alice", "visit-1")
	if got := len(f.publisher.analytics); got != 1 {
		t.Fatalf("views after re-render = %d, want 1", got)
	}

	f.resolve(t, "alice", "visit-2")
	f.resolve(t, "alice", "")
	f.resolve(t, "alice", "")
	if got := len(f.publisher.analytics); got != 4 {
		t.Errorf("views = %d, want 4", got)
	}
	if ev := f.publisher.analytics[0]; ev.Type != domain.AnalyticsView || ev.VisitID != "visit-1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestResolve_OwnerPreviewIsNotAView(t *testing.T) {
	f := newFixture(Config{})
	f.profiles.profiles = []*domain.Profile{{ID: uuid.New(), Username: strPtr("alice"), OwnerRef: "u1"}}

	res, err := f.svc.Resolve(context.Background(), &in.ResolveRequest{Token: "alice", Viewer: "u1"})
	f.recorder.Flush()
	if err != nil || res.Outcome != domain.OutcomeProfile {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(f.publisher.analytics) != 0 {
		t.Error("owner preview recorded a view")
	}
}

func TestResolve_DerivedFields(t *testing.T) {
	f := newFixture(Config{})
	team := &domain.Team{ID: uuid.New(), CompanyName: "Acme", Theme: "dark"}
	f.profiles.teams[team.ID] = team
	member := &domain.Profile{
		ID:           uuid.New(),
		Username:     strPtr("bob"),
		OwnerRef:     "u9",
		Company:      "Bob LLC",
		Theme:        "light",
		Template:     "classic",
		TeamID:       &team.ID,
		SectionOrder: []string{"social", "links"},
	}
	other := &domain.Profile{ID: uuid.New(), OwnerRef: "u9", IsPremium: true}
	f.profiles.profiles = []*domain.Profile{member, other}

	res := f.resolve(t, "bob", "")
	view := res.Profile

	if !view.EffectivePremium {
		t.Error("account-level premium not applied")
	}
	if view.Branding.CompanyName != "Acme" || view.Branding.Theme != "dark" || view.Branding.Template != "classic" {
		t.Errorf("branding = %+v", view.Branding)
	}
	want := []string{"social", "contact", "links"}
	if len(view.SectionOrder) != len(want) {
		t.Fatalf("section order = %v, want %v", view.SectionOrder, want)
	}
	for i := range want {
		if view.SectionOrder[i] != want[i] {
			t.Errorf("section order = %v, want %v", view.SectionOrder, want)
			break
		}
	}
}
