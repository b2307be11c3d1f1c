package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/internal/sync"
)

// Scheduler runs the periodic sync jobs: daily update, monthly seed, and
// the announcement sweep. Each job runs the shared Runner serially.
type Scheduler struct {
	cron   *cron.Cron
	runner *sync.Runner
	log    zerolog.Logger
}

// New creates a scheduler around the given runner.
func New(runner *sync.Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		log:    log,
	}
}

// Register adds the jobs from their cron specs. Empty specs disable the
// corresponding job.
func (s *Scheduler) Register(ctx context.Context, updateCron, seedCron, announceCron string) error {
	if updateCron != "" {
		if _, err := s.cron.AddFunc(updateCron, func() {
			if _, err := s.runner.Update(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled update failed")
			}
		}); err != nil {
			return fmt.Errorf("register update job: %w", err)
		}
	}

	if seedCron != "" {
		if _, err := s.cron.AddFunc(seedCron, func() {
			if _, err := s.runner.Seed(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled seed failed")
			}
		}); err != nil {
			return fmt.Errorf("register seed job: %w", err)
		}
	}

	if announceCron != "" {
		if _, err := s.cron.AddFunc(announceCron, func() {
			n, err := s.runner.CollectAnnouncements(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("announcement sweep failed")
				return
			}
			if n > 0 {
				s.log.Info().Int("announcements", n).Msg("announcement sweep")
			}
		}); err != nil {
			return fmt.Errorf("register announcement job: %w", err)
		}
	}

	return nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron loop, waiting for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
