package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// SessionSweeper evicts finished live sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context) int
}

// Sweeper runs periodic housekeeping jobs on a cron schedule.
type Sweeper struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewSweeper creates a Sweeper with no jobs. Overlapping runs of the same
// job are skipped.
func NewSweeper(log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.With().Str("component", "sweeper").Logger(),
	}
}

// AddJob schedules fn under spec. fn receives ctx on every run.
func (s *Sweeper) AddJob(ctx context.Context, name, spec string, fn func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("Job scheduled")
	return nil
}

// AddSessionSweep schedules the eviction of finished live sessions.
func (s *Sweeper) AddSessionSweep(ctx context.Context, spec string, target SessionSweeper) error {
	return s.AddJob(ctx, "session_sweep", spec, func(ctx context.Context) {
		if n := target.Sweep(ctx); n > 0 {
			s.log.Debug().Int("evicted", n).Msg("Session sweep finished")
		}
	})
}

// Start begins running the scheduled jobs in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Sweeper started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Sweeper stopped")
}
