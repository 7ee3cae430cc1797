/**
 * @description
 * Cron scheduler setup for the renewal reminder job.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	service    Service
	logger     *slog.Logger
	schedule   string
	windowDays int
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(service Service, logger *slog.Logger, schedule string, windowDays int) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:       c,
		service:    service,
		logger:     logger,
		schedule:   schedule,
		windowDays: windowDays,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.SendRenewalReminders); err != nil {
		s.logger.Error("failed to schedule renewal reminder job", "error", err)
		return err
	}
	s.logger.Info("scheduled renewal reminder job", "schedule", s.schedule, "window_days", s.windowDays)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// SendRenewalReminders is the job that announces subscriptions renewing soon.
func (s *Scheduler) SendRenewalReminders() {
	s.logger.Info("starting renewal reminder job")

	result, err := s.service.RunRenewalReminders(context.Background(), s.windowDays)
	if err != nil {
		s.logger.Error("failed to run renewal reminders", "error", err)
		return
	}

	s.logger.Info("renewal reminder job finished",
		"evaluated", result.Evaluated,
		"published", result.Published,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}
