package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Roller folds raw analytics events into daily stats.
type Roller interface {
	Rollup(ctx context.Context, since time.Time) (int64, error)
}

// SchedulerConfig holds the periodic job intervals.
type SchedulerConfig struct {
	RollupInterval time.Duration
	// RollupLookback is how far back each rollup recomputes; it must cover
	// late events from the previous day.
	RollupLookback time.Duration
	FlushInterval  time.Duration
}

// Scheduler runs the rollup and the periodic buffer flush.
type Scheduler struct {
	sched     gocron.Scheduler
	roller    Roller
	processor *Processor
	cfg       SchedulerConfig
	log       zerolog.Logger
}

func NewScheduler(roller Roller, processor *Processor, cfg SchedulerConfig, log zerolog.Logger) (*Scheduler, error) {
	if cfg.RollupInterval <= 0 {
		cfg.RollupInterval = 15 * time.Minute
	}
	if cfg.RollupLookback <= 0 {
		cfg.RollupLookback = 48 * time.Hour
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		sched:     sched,
		roller:    roller,
		processor: processor,
		cfg:       cfg,
		log:       log.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs use ctx for their
// database calls.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.sched.NewJob(
		gocron.DurationJob(s.cfg.RollupInterval),
		gocron.NewTask(func() { s.RunRollup(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return err
	}

	if s.processor != nil {
		if _, err := s.sched.NewJob(
			gocron.DurationJob(s.cfg.FlushInterval),
			gocron.NewTask(func() {
				if err := s.processor.Flush(ctx); err != nil {
					s.log.Warn().Err(err).Msg("periodic flush failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return err
		}
	}

	s.sched.Start()
	s.log.Info().
		Dur("rollup_interval", s.cfg.RollupInterval).
		Dur("flush_interval", s.cfg.FlushInterval).
		Msg("scheduler started")
	return nil
}

// RunRollup recomputes daily stats for the lookback window.
func (s *Scheduler) RunRollup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	since := time.Now().UTC().Add(-s.cfg.RollupLookback)
	n, err := s.roller.Rollup(ctx, since)
	if err != nil {
		s.log.Error().Err(err).Msg("analytics rollup failed")
		return
	}
	s.log.Info().Int64("rows", n).Time("since", since).Msg("analytics rollup done")
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
