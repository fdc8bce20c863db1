// Package outbox records best-effort card and analytics events without
// blocking the request that produced them.
package outbox

import (
	"context"
	"sync"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/logger"
)

const defaultPublishTimeout = 3 * time.Second

// Recorder publishes events through an out.EventPublisher. Failures are logged
// and discarded; nothing is retried.
type Recorder struct {
	publisher out.EventPublisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewRecorder(publisher out.EventPublisher, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Recorder{publisher: publisher, timeout: timeout}
}

// Tap publishes a tap log in the background.
func (r *Recorder) Tap(ctx context.Context, entry *domain.CardTapLog) {
	r.async(ctx, func(ctx context.Context) error {
		return r.publisher.PublishTap(ctx, entry)
	}, "tap "+string(entry.Event)+" "+entry.CardUID)
}

// TapSync publishes a tap log and waits for it, still swallowing the error.
func (r *Recorder) TapSync(ctx context.Context, entry *domain.CardTapLog) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.publisher.PublishTap(ctx, entry); err != nil {
		logger.WithError(err).Warn("[Recorder.TapSync] %s %s dropped", entry.Event, entry.CardUID)
	}
}

// Analytics publishes an analytics event in the background.
func (r *Recorder) Analytics(ctx context.Context, event *domain.AnalyticsEvent) {
	r.async(ctx, func(ctx context.Context) error {
		return r.publisher.PublishAnalytics(ctx, event)
	}, "analytics "+string(event.Type)+" "+event.ProfileID.String())
}

// Flush waits for in-flight background publishes.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

func (r *Recorder) async(ctx context.Context, publish func(context.Context) error, what string) {
	// detached from the request: the response must not wait, and a finished
	// request must not cancel the write
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		if err := publish(pctx); err != nil {
			logger.WithError(err).Warn("[Recorder] %s dropped", what)
		}
	}()
}
