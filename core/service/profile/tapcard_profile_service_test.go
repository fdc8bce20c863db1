package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"

	"github.com/google/uuid"
)

type memProfiles struct {
	out.ProfileRepository
	profiles []*domain.Profile
	claimErr error
}

func (m *memProfiles) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, out.ErrNotFound
}

func (m *memProfiles) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	for _, p := range m.profiles {
		if p.Username != nil && *p.Username == username {
			return p, nil
		}
	}
	return nil, out.ErrNotFound
}

func (m *memProfiles) ListByOwner(_ context.Context, ownerRef string) ([]*domain.Profile, error) {
	var res []*domain.Profile
	for _, p := range m.profiles {
		if p.OwnerRef == ownerRef {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *memProfiles) ClaimUsername(_ context.Context, id uuid.UUID, username string, expected int64) (*domain.Profile, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	for _, p := range m.profiles {
		if p.ID != id {
			continue
		}
		if p.Version != expected {
			return nil, out.ErrConflict
		}
		p.Username = &username
		p.Version++
		cp := *p
		return &cp, nil
	}
	return nil, out.ErrNotFound
}

type memAnalytics struct {
	out.AnalyticsRepository
	from, to time.Time
}

func (m *memAnalytics) DailyStats(_ context.Context, id uuid.UUID, from, to time.Time) ([]*domain.ProfileDailyStats, error) {
	m.from, m.to = from, to
	return nil, nil
}

func strPtr(s string) *string { return &s }

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice", "alice", false},
		{"  @Bob-Smith ", "bob-smith", false},
		{"jo", "", true},
		{"has space", "", true},
		{"under_score", "", true},
		{"-dash", "", true},
		{"admin", "", true},
		{"AB123", "", true},
		{"ab123", "", true},
		{"3f2504e0-4f89-41d3-9a0c-0305e82c3301", "", true},
		{"abcdefghijklmnopqrstuvwxyz0123456", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateUsername(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClaimUsername(t *testing.T) {
	mineID := uuid.New()
	takenID := uuid.New()

	tests := []struct {
		name        string
		owner       string
		username    string
		version     int64
		claimErr    error
		wantErrCode string
	}{
		{"claims free name", "u1", "Alice", 2, nil, ""},
		{"same name is a no-op", "u1", "current", 99, nil, ""},
		{"pre-check finds duplicate", "u1", "taken", 2, nil, apperr.CodeDuplicateUsername},
		{"unique index race", "u1", "racy", 2, out.ErrDuplicate, apperr.CodeDuplicateUsername},
		{"stale version", "u1", "alice", 1, nil, apperr.CodeConflict},
		{"not the owner", "u2", "alice", 2, nil, apperr.CodeForbidden},
		{"invalid shape", "u1", "a b", 2, nil, apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memProfiles{
				profiles: []*domain.Profile{
					{ID: mineID, OwnerRef: "u1", Username: strPtr("current"), Version: 2},
					{ID: takenID, OwnerRef: "u3", Username: strPtr("taken")},
				},
				claimErr: tt.claimErr,
			}
			svc := NewService(repo, &memAnalytics{})

			p, err := svc.ClaimUsername(context.Background(), tt.owner, &in.ClaimUsernameRequest{
				ProfileID: mineID,
				Username:  tt.username,
				Version:   tt.version,
			})

			if tt.wantErrCode != "" {
				if appErr := apperr.AsAppError(err); appErr == nil || appErr.Code != tt.wantErrCode {
					t.Fatalf("err = %v, want %s", err, tt.wantErrCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if want := domain.NormalizeUsername(tt.username); *p.Username != want {
				t.Errorf("username = %q, want %q", *p.Username, want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	id := uuid.New()
	analytics := &memAnalytics{}
	svc := NewService(&memProfiles{profiles: []*domain.Profile{{ID: id, OwnerRef: "u1"}}}, analytics)

	stats, err := svc.Stats(context.Background(), "u1", id, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stats == nil {
		t.Error("stats should be an empty slice")
	}
	if got := analytics.to.Sub(analytics.from); got != 6*24*time.Hour {
		t.Errorf("window = %v, want 6 days", got)
	}

	if _, err := svc.Stats(context.Background(), "u2", id, 7); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
	if _, err := svc.Stats(context.Background(), "u1", id, 0); err == nil {
		t.Error("expected invalid days error")
	}
}
