package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	BatchSize      int
	WorkerChanSize int
	JobTimeout     time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        4,
		BatchSize:      10,
		WorkerChanSize: 100,
		JobTimeout:     30 * time.Second,
	}
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed int64
	JobsFailed    int64
	JobsDropped   int64
}

// Pool fans decoded messages out to go-pkgz/pool workers.
type Pool struct {
	processor *Processor
	config    *PoolConfig
	log       zerolog.Logger
	metrics   PoolMetrics

	group   *pool.WorkerGroup[*Message]
	started bool
	mu      sync.Mutex
}

type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

func NewPool(processor *Processor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	return &Pool{
		processor: processor,
		config:    config,
		log:       log.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers; they stop when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	p.group = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(p.config.BatchSize).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()
	if err := p.group.Go(ctx); err != nil {
		return err
	}
	p.started = true

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("batch_size", p.config.BatchSize).
		Msg("worker pool started")
	return nil
}

// Submit queues msg. It reports false once the pool is stopped.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		return false
	}
	p.group.Submit(msg)
	return true
}

// Stop drains queued messages and flushes the processor buffers.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	group := p.group
	p.mu.Unlock()

	if err := group.Close(ctx); err != nil {
		p.log.Warn().Err(err).Msg("error closing worker pool")
	}
	if err := p.processor.Flush(ctx); err != nil {
		p.log.Warn().Err(err).Msg("final flush failed")
	}

	m := p.Metrics()
	p.log.Info().
		Int64("processed", m.JobsProcessed).
		Int64("failed", m.JobsFailed).
		Int64("dropped", m.JobsDropped).
		Msg("worker pool stopped")
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	if err := p.processor.Process(jobCtx, msg); err != nil {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		p.log.Error().
			Err(err).
			Str("id", msg.ID).
			Str("stream", msg.Stream).
			Msg("job processing failed")
		return err
	}
	atomic.AddInt64(&p.metrics.JobsProcessed, 1)
	return nil
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed: atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:    atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsDropped:   atomic.LoadInt64(&p.metrics.JobsDropped),
	}
}
