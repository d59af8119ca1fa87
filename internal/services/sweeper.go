package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vetrai/auth-service/pkg/logger"
)

// Sweeper reaps expired token records on a cron schedule. Each run is
// idempotent, so overlapping or repeated runs are harmless.
type Sweeper struct {
	store     *TokenStore
	scheduler *cron.Cron
}

func NewSweeper(store *TokenStore) *Sweeper {
	return &Sweeper{
		store:     store,
		scheduler: cron.New(),
	}
}

// Start runs one sweep immediately, then on the given cron schedule
// (e.g. "@every 10m").
func (s *Sweeper) Start(schedule string) error {
	s.runOnce()

	if _, err := s.scheduler.AddFunc(schedule, s.runOnce); err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Sweeper) runOnce() {
	removed, err := s.store.Sweep(context.Background(), time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("token sweep failed")
		return
	}
	if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("swept expired token records")
	}
}
