package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Purger deletes records dated before a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler periodically removes records older than the retention age.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    Purger
	maxAge    time.Duration
	interval  time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

// New creates a new Scheduler. A maxAge of 0 disables the sweep.
func New(purger Purger, maxAge, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		maxAge:    maxAge,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Start schedules the retention job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.maxAge <= 0 {
		s.logger.Info("scheduler: retention disabled; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Sweep runs one retention pass and returns the number of records removed.
func (s *Scheduler) Sweep(ctx context.Context) int64 {
	cutoff := s.clock.Now().UTC().Add(-s.maxAge)
	n, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduler: retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	s.logger.Info("scheduler: retention sweep completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("removed", n))
	return n
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
