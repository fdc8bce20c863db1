package exchange

import (
	"context"
	"errors"
	"testing"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/apperr"

	"github.com/google/uuid"
)

type memExchanges struct {
	items map[uuid.UUID]*domain.ContactExchange
}

func (m *memExchanges) Create(_ context.Context, ex *domain.ContactExchange) error {
	m.items[ex.ID] = ex
	return nil
}

func (m *memExchanges) GetByID(_ context.Context, id uuid.UUID) (*domain.ContactExchange, error) {
	if ex, ok := m.items[id]; ok {
		return ex, nil
	}
	return nil, out.ErrNotFound
}

func (m *memExchanges) ListByOwner(_ context.Context, owner uuid.UUID, limit, offset int) ([]*domain.ContactExchange, int, error) {
	var res []*domain.ContactExchange
	for _, ex := range m.items {
		if ex.CardOwnerID == owner {
			res = append(res, ex)
		}
	}
	return res, len(res), nil
}

func (m *memExchanges) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return out.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memProfiles struct {
	out.ProfileRepository
	profiles map[uuid.UUID]*domain.Profile
}

func (m *memProfiles) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	return nil, out.ErrNotFound
}

func setup() (*Service, *memExchanges, *domain.Profile, *domain.Profile) {
	open := &domain.Profile{ID: uuid.New(), OwnerRef: "u1"}
	locked := &domain.Profile{ID: uuid.New(), OwnerRef: "u2", IsLocked: true}
	ex := &memExchanges{items: map[uuid.UUID]*domain.ContactExchange{}}
	profiles := &memProfiles{profiles: map[uuid.UUID]*domain.Profile{open.ID: open, locked.ID: locked}}
	return NewService(ex, profiles), ex, open, locked
}

func TestSubmit(t *testing.T) {
	svc, _, open, locked := setup()

	tests := []struct {
		name        string
		profileID   uuid.UUID
		req         in.SubmitExchangeRequest
		wantErrCode string
	}{
		{"stores trimmed details", open.ID, in.SubmitExchangeRequest{Name: " Visitor ", Email: "V@Example.com"}, ""},
		{"phone only", open.ID, in.SubmitExchangeRequest{Name: "Visitor", Phone: "+1 555"}, ""},
		{"needs a way to reach back", open.ID, in.SubmitExchangeRequest{Name: "Visitor"}, apperr.CodeInvalidInput},
		{"locked profile", locked.ID, in.SubmitExchangeRequest{Name: "Visitor", Email: "v@example.com"}, apperr.CodeProfileLocked},
		{"unknown profile", uuid.New(), in.SubmitExchangeRequest{Name: "Visitor", Email: "v@example.com"}, apperr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			ex, err := svc.Submit(context.Background(), tt.profileID, &req)
			if tt.wantErrCode != "" {
				if appErr := apperr.AsAppError(err); appErr == nil || appErr.Code != tt.wantErrCode {
					t.Fatalf("err = %v, want %s", err, tt.wantErrCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ex.Name != "Visitor" || ex.CardOwnerID != open.ID {
				t.Errorf("exchange = %+v", ex)
			}
			if req.Email != "" && ex.Email != "v@example.com" {
				t.Errorf("email = %q", ex.Email)
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	svc, store, open, _ := setup()
	ex, err := svc.Submit(context.Background(), open.ID, &in.SubmitExchangeRequest{Name: "V", Email: "v@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	items, total, err := svc.List(context.Background(), "u1", open.ID, 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("items=%d total=%d err=%v", len(items), total, err)
	}

	if _, _, err := svc.List(context.Background(), "intruder", open.ID, 20, 0); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("list by stranger: err = %v", err)
	}
	if err := svc.Delete(context.Background(), "intruder", ex.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("delete by stranger: err = %v", err)
	}
	if err := svc.Delete(context.Background(), "u1", ex.ID); err != nil {
		t.Fatal(err)
	}
	if len(store.items) != 0 {
		t.Error("exchange not deleted")
	}
	if err := svc.Delete(context.Background(), "u1", ex.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}
