package provisioning

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"

	"github.com/google/uuid"
)

type memCards struct {
	out.CardRepository
	existing map[string]bool
	calls    int
}

func (m *memCards) InsertBatch(_ context.Context, uids []string) ([]string, error) {
	m.calls++
	var got []string
	for _, u := range uids {
		if m.existing[u] {
			continue
		}
		m.existing[u] = true
		got = append(got, u)
	}
	return got, nil
}

func (m *memCards) ListByProfiles(context.Context, []uuid.UUID) ([]*domain.PhysicalCard, error) {
	return nil, nil
}

type memStorage struct {
	key, body string
	err       error
}

func (m *memStorage) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, _ := io.ReadAll(body)
	m.key, m.body = key, string(b)
	return "https://files.example.com/" + key, nil
}

// sequence returns 0, 1, 2, ... modulo n.
func sequence() func(int) int {
	i := 0
	return func(n int) int {
		v := i % n
		i++
		return v
	}
}

func TestProvision_RedrawsCollisions(t *testing.T) {
	cards := &memCards{existing: map[string]bool{"AB000": true, "AB001": true}}
	storage := &memStorage{}
	svc := NewService(cards, storage, "https://tap.example.com/")
	svc.intn = sequence()

	res, err := svc.Provision(context.Background(), &in.ProvisionRequest{Count: 3, Prefix: "AB"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"AB002", "AB003", "AB004"}
	if res.Inserted != 3 || strings.Join(res.CardUIDs, ",") != strings.Join(want, ",") {
		t.Fatalf("uids = %v, want %v", res.CardUIDs, want)
	}
	if cards.calls != 2 {
		t.Errorf("insert calls = %d, want 2", cards.calls)
	}
	if res.ManifestURL == "" || !strings.HasPrefix(storage.key, "manifests/cards-") {
		t.Errorf("manifest url=%q key=%q", res.ManifestURL, storage.key)
	}
	if !strings.Contains(storage.body, "AB002,https://tap.example.com/AB002") {
		t.Errorf("manifest body = %q", storage.body)
	}
}

func TestProvision_Validation(t *testing.T) {
	svc := NewService(&memCards{existing: map[string]bool{}}, nil, "")

	tests := []struct {
		name string
		req  in.ProvisionRequest
	}{
		{"zero", in.ProvisionRequest{Count: 0}},
		{"too many", in.ProvisionRequest{Count: MaxBatch + 1}},
		{"lowercase prefix", in.ProvisionRequest{Count: 1, Prefix: "ab"}},
		{"long prefix", in.ProvisionRequest{Count: 1, Prefix: "ABC"}},
		{"prefix overflow", in.ProvisionRequest{Count: 1001, Prefix: "AB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if _, err := svc.Provision(context.Background(), &req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProvision_RejectsOutOfRangeDraw(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		draw   func(n int) int
	}{
		{"past the prefix block", "AB", func(n int) int { return n }},
		{"past the uid space", "", func(n int) int { return n }},
		{"negative", "ZZ", func(int) int { return -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := &memCards{existing: map[string]bool{}}
			svc := NewService(cards, nil, "")
			svc.intn = tt.draw

			if _, err := svc.Provision(context.Background(), &in.ProvisionRequest{Count: 2, Prefix: tt.prefix}); err == nil {
				t.Fatal("expected error")
			}
			if cards.calls != 0 || len(cards.existing) != 0 {
				t.Errorf("cards inserted after a bad draw: %v", cards.existing)
			}
		})
	}
}

func TestProvision_ExhaustedPrefixReportsShortfall(t *testing.T) {
	existing := map[string]bool{}
	for i := 0; i < 1000; i++ {
		uid, _ := domain.CardUIDAt(i)
		existing[uid] = true
	}
	svc := NewService(&memCards{existing: existing}, nil, "")

	res, err := svc.Provision(context.Background(), &in.ProvisionRequest{Count: 5, Prefix: "AA"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Requested != 5 || len(res.CardUIDs) != 0 {
		t.Errorf("inserted=%d requested=%d", res.Inserted, res.Requested)
	}
}

func TestProvision_UploadFailureKeepsCards(t *testing.T) {
	svc := NewService(&memCards{existing: map[string]bool{}}, &memStorage{err: errors.New("bucket gone")}, "")

	res, err := svc.Provision(context.Background(), &in.ProvisionRequest{Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || res.ManifestURL != "" {
		t.Errorf("res = %+v", res)
	}
	for _, uid := range res.CardUIDs {
		if !domain.IsCardUID(uid) {
			t.Errorf("bad uid %q", uid)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	svc := NewService(nil, nil, "https://tap.example.com")
	var buf bytes.Buffer
	if err := svc.WriteManifest(&buf, []string{"AB123"}); err != nil {
		t.Fatal(err)
	}
	want := "card_uid,url\nAB123,https://tap.example.com/AB123\n"
	if buf.String() != want {
		t.Errorf("manifest = %q, want %q", buf.String(), want)
	}
}
