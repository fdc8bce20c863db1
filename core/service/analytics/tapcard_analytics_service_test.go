package analytics

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/core/service/outbox"

	"github.com/google/uuid"
)

type memPublisher struct {
	mu     sync.Mutex
	events []*domain.AnalyticsEvent
}

func (m *memPublisher) PublishTap(context.Context, *domain.CardTapLog) error { return nil }

func (m *memPublisher) PublishAnalytics(_ context.Context, e *domain.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

type memRepo struct {
	out.AnalyticsRepository
	since time.Time
}

func (m *memRepo) Rollup(_ context.Context, since time.Time) (int64, error) {
	m.since = since
	return 3, nil
}

func TestClickTarget(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"linkedin", "linkedin"},
		{"LinkedIn", "linkedin"},
		{"Company Site!", "company-site"},
		{"   ", ""},
		{"Über Uns", "uber-uns"},
		{strings.Repeat("a", 47) + " bcd", strings.Repeat("a", 47)},
		{strings.Repeat("x", 60), strings.Repeat("x", 48)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ClickTarget(tt.in); got != tt.want {
				t.Errorf("ClickTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecordClick(t *testing.T) {
	pub := &memPublisher{}
	rec := outbox.NewRecorder(pub, time.Second)
	svc := NewService(&memRepo{}, rec)
	id := uuid.New()

	if err := svc.RecordClick(context.Background(), id, "LinkedIn", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordClick(context.Background(), id, "  ", "v1"); err == nil {
		t.Error("expected error for empty target")
	}
	rec.Flush()

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	if ev := pub.events[0]; ev.Type != "click_linkedin" || ev.ProfileID != id || !ev.Type.IsClick() {
		t.Errorf("event = %+v", ev)
	}
}

func TestRollupTruncatesToDay(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, outbox.NewRecorder(&memPublisher{}, time.Second))

	n, err := svc.Rollup(context.Background(), time.Date(2024, 5, 3, 17, 45, 0, 0, time.UTC))
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if want := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC); !repo.since.Equal(want) {
		t.Errorf("since = %v, want %v", repo.since, want)
	}
}
