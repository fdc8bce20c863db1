package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

type fakePublisher struct {
	mu        sync.Mutex
	taps      []*domain.CardTapLog
	analytics []*domain.AnalyticsEvent
	err       error
	sawCancel bool
}

func (f *fakePublisher) PublishTap(ctx context.Context, entry *domain.CardTapLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		f.sawCancel = true
	}
	if f.err != nil {
		return f.err
	}
	f.taps = append(f.taps, entry)
	return nil
}

func (f *fakePublisher) PublishAnalytics(ctx context.Context, event *domain.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.analytics = append(f.analytics, event)
	return nil
}

func TestRecorder_AsyncSurvivesRequestCancel(t *testing.T) {
	pub := &fakePublisher{}
	rec := NewRecorder(pub, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Tap(ctx, domain.NewCardTapLog("AB123", domain.TapEventTapped, nil))
	rec.Analytics(ctx, domain.NewAnalyticsEvent(uuid.New(), domain.AnalyticsView, "v1"))
	rec.Flush()

	if len(pub.taps) != 1 || len(pub.analytics) != 1 {
		t.Fatalf("taps=%d analytics=%d, want 1 and 1", len(pub.taps), len(pub.analytics))
	}
	if pub.sawCancel {
		t.Error("publish saw a cancelled context")
	}
}

func TestRecorder_ErrorsAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	rec := NewRecorder(pub, 0)

	rec.Tap(context.Background(), domain.NewCardTapLog("AB123", domain.TapEventTapped, nil))
	rec.TapSync(context.Background(), domain.NewCardTapLog("AB123", domain.TapEventActivated, nil))
	rec.Flush()

	if len(pub.taps) != 0 {
		t.Errorf("taps = %d, want 0", len(pub.taps))
	}
}
