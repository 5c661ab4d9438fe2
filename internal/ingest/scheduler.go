package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Runner is anything that performs an ingestion run.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler triggers a run every interval until its context ends.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is done. Failed runs are logged and retried on the
// next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("Ingestion scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.runner.Run(ctx)
			switch {
			case errors.Is(err, ErrCooldownActive):
				s.log.Debug().Err(err).Msg("Scheduled ingestion skipped by cooldown")
			case err != nil:
				s.log.Error().Err(err).Msg("Scheduled ingestion failed")
			case result.Skipped:
				s.log.Debug().Msg("Scheduled ingestion skipped, another run is active")
			}
		}
	}
}
