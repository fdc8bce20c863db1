package bootstrap

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"tapcard_server/adapter/in/worker"
	"tapcard_server/adapter/out/messaging"
	"tapcard_server/config"
	"tapcard_server/pkg/logger"

	"github.com/rs/zerolog"
)

const consumerGroup = "tapcard-workers"

// Worker drains the outbox streams into Postgres and runs the rollup.
type Worker struct {
	pool      *worker.Pool
	processor *worker.Processor
	consumer  *messaging.Consumer
	scheduler *worker.Scheduler
	deps      *Dependencies
	ctx       context.Context
	cancel    context.CancelFunc
	// the pool outlives ctx so queued messages drain after the consumer stops
	poolCtx    context.Context
	poolCancel context.CancelFunc
	wg         sync.WaitGroup
	zlog       zerolog.Logger
	stopOnce   sync.Once
	stopped    chan struct{}
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := deps.RequireRedis("worker"); err != nil {
		cleanup()
		return nil, nil, err
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()
	if cfg.IsDevelopment() {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("component", "worker").Logger()
	}

	processor := worker.NewProcessor(deps.EventRepo, worker.ProcessorConfig{
		BatchSize:  cfg.WorkerBatchSize,
		MaxRetries: cfg.ConsumerMaxRetries,
	}, zlog)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerCount > 0 {
		poolConfig.Workers = cfg.WorkerCount
	}
	if cfg.WorkerJobTimeout > 0 {
		poolConfig.JobTimeout = cfg.WorkerJobTimeout
	}
	pool := worker.NewPool(processor, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	poolCtx, poolCancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:       pool,
		processor:  processor,
		deps:       deps,
		ctx:        ctx,
		cancel:     cancel,
		poolCtx:    poolCtx,
		poolCancel: poolCancel,
		zlog:       zlog,
		stopped:    make(chan struct{}),
	}

	w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:                consumerGroup,
		Consumer:             cfg.WorkerID,
		Streams:              messaging.Streams,
		Handler:              worker.NewDispatcher(pool, zlog),
		Logger:               zlog,
		Batch:                int64(cfg.ConsumerBatchSize),
		Block:                time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		PendingIdleTime:      time.Duration(cfg.ConsumerPendingIdleSec) * time.Second,
		MaxRetries:           cfg.ConsumerMaxRetries,
	})
	logger.Info("Redis Stream Consumer configured for %d streams", len(messaging.Streams))

	if cfg.SchedulerEnabled {
		w.scheduler, err = worker.NewScheduler(deps.AnalyticsService, processor, worker.SchedulerConfig{
			RollupInterval: cfg.RollupInterval,
			RollupLookback: time.Duration(cfg.RollupLookbackHrs) * time.Hour,
			FlushInterval:  time.Duration(cfg.WorkerFlushMS) * time.Millisecond,
		}, zlog)
		if err != nil {
			cancel()
			poolCancel()
			cleanup()
			return nil, nil, err
		}
	}

	return w, cleanup, nil
}

// Start blocks until Stop has finished draining.
func (w *Worker) Start() {
	if err := w.pool.Start(w.poolCtx); err != nil {
		w.zlog.Error().Err(err).Msg("Failed to start worker pool")
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.zlog.Info().Msg("Starting Redis Stream Consumer...")
		if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
		}
	}()

	if w.scheduler != nil {
		if err := w.scheduler.Start(w.ctx); err != nil {
			w.zlog.Error().Err(err).Msg("Failed to start scheduler")
		} else {
			w.zlog.Info().Msg("Started rollup scheduler")
		}
	}

	<-w.stopped
}

// Stop halts the consumer first so nothing new is submitted, then drains the
// pool and flushes the processor buffer.
func (w *Worker) Stop(ctx context.Context) {
	w.stopOnce.Do(func() {
		w.cancel()
		w.wg.Wait()

		if w.scheduler != nil {
			if err := w.scheduler.Shutdown(); err != nil {
				w.zlog.Warn().Err(err).Msg("Scheduler shutdown error")
			}
		}
		w.pool.Stop(ctx)
		w.poolCancel()
		close(w.stopped)
	})
}

func (w *Worker) Metrics() worker.PoolMetrics {
	return w.pool.Metrics()
}
