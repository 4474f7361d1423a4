// Package scheduler wires up the cron job that periodically prunes the
// activity log.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"housematch/server/internal/jobs"
)

// Scheduler wraps robfig/cron and manages the retention job.
type Scheduler struct {
	cron   *cron.Cron
	pruner *jobs.RetentionPruner
	logger *logrus.Logger
	spec   string
}

// NewScheduler creates a scheduler that runs retention pruning on the given
// cron spec.
func NewScheduler(pruner *jobs.RetentionPruner, spec string, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:   cron.New(),
		pruner: pruner,
		logger: logger,
		spec:   spec,
	}
}

// Start registers the retention job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runRetention); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("Retention schedule started")
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Retention schedule stopped")
}

func (s *Scheduler) runRetention() {
	s.logger.Info("Starting retention pruning")
	deleted, err := s.pruner.Run(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Retention pruning failed")
		return
	}
	s.logger.WithField("deleted", deleted).Info("Retention pruning complete")
}
