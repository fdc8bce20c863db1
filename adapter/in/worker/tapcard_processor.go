package worker

import (
	"context"
	"sync"
	"time"

	"tapcard_server/core/domain"

	"github.com/rs/zerolog"
)

// EventSink is the persistence the processor writes batches to.
type EventSink interface {
	InsertTapBatch(ctx context.Context, logs []*domain.CardTapLog) error
	InsertAnalyticsBatch(ctx context.Context, events []*domain.AnalyticsEvent) error
}

// Processor buffers decoded events and writes them in batches. Inserts are
// idempotent on the event id, so a redelivered entry is harmless.
type Processor struct {
	sink       EventSink
	batchSize  int
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	taps   []*domain.CardTapLog
	events []*domain.AnalyticsEvent

	// serialises flushes so batches are written in arrival order
	flushMu sync.Mutex
}

// ProcessorConfig holds batching settings.
type ProcessorConfig struct {
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

func NewProcessor(sink EventSink, cfg ProcessorConfig, log zerolog.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Processor{
		sink:       sink,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		log:        log.With().Str("component", "event_processor").Logger(),
	}
}

// Process buffers msg and flushes once a buffer reaches the batch size.
func (p *Processor) Process(ctx context.Context, msg *Message) error {
	p.mu.Lock()
	if msg.Tap != nil {
		p.taps = append(p.taps, msg.Tap)
	}
	if msg.Event != nil {
		p.events = append(p.events, msg.Event)
	}
	full := len(p.taps) >= p.batchSize || len(p.events) >= p.batchSize
	p.mu.Unlock()

	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Pending reports how many events are buffered.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.taps) + len(p.events)
}

// Flush writes every buffered event. A batch that still fails after the
// retries is dropped and logged; these events are best-effort.
func (p *Processor) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	taps, events := p.taps, p.events
	p.taps, p.events = nil, nil
	p.mu.Unlock()

	var firstErr error
	if len(taps) > 0 {
		if err := p.retry(ctx, "tap", len(taps), func(ctx context.Context) error {
			return p.sink.InsertTapBatch(ctx, taps)
		}); err != nil {
			firstErr = err
		}
	}
	if len(events) > 0 {
		if err := p.retry(ctx, "analytics", len(events), func(ctx context.Context) error {
			return p.sink.InsertAnalyticsBatch(ctx, events)
		}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Processor) retry(ctx context.Context, kind string, n int, write func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				p.log.Error().Err(err).Str("kind", kind).Int("count", n).Msg("batch dropped on shutdown")
				return err
			case <-time.After(wait):
			}
		}
		if err = write(ctx); err == nil {
			p.log.Debug().Str("kind", kind).Int("count", n).Msg("batch written")
			return nil
		}
		p.log.Warn().Err(err).Str("kind", kind).Int("attempt", attempt+1).Msg("batch write failed")
	}
	p.log.Error().Err(err).Str("kind", kind).Int("count", n).Msg("batch dropped after retries")
	return err
}
