// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StagedExpirer drops a staged import that has waited too long for review.
type StagedExpirer interface {
	ExpireStaged(maxAge time.Duration) bool
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	imports   StagedExpirer
	stagedTTL time.Duration
	spec      string
	logger    *slog.Logger
}

// NewScheduler creates a scheduler that expires staged imports older than
// stagedTTL. The check runs every minute.
func NewScheduler(imports StagedExpirer, stagedTTL time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		imports:   imports,
		stagedTTL: stagedTTL,
		spec:      "@every 1m",
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.expireStaged); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.Duration("staged_ttl", s.stagedTTL),
	)
	return nil
}

// Stop stops scheduling. The returned context is done once running jobs end.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the expiry check synchronously.
func (s *Scheduler) RunNow() {
	s.expireStaged()
}

func (s *Scheduler) expireStaged() {
	if s.imports.ExpireStaged(s.stagedTTL) {
		s.logger.Info("expired stale staged import", slog.Duration("ttl", s.stagedTTL))
	}
}
