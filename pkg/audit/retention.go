package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskgrid/taskgrid/pkg/observability"
)

// RetentionSweeper prunes audit events past the retention window on a cron
// schedule. It only targets the database sink; rotated file logs are
// bounded by the file logger itself.
type RetentionSweeper struct {
	dbLogger *DBLogger
	policy   RetentionPolicy
	schedule string
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewRetentionSweeper builds a sweeper over the given database logger.
// An empty schedule defaults to a daily sweep at 00:30 UTC.
func NewRetentionSweeper(dbLogger *DBLogger, policy RetentionPolicy, schedule string, logger *observability.Logger) *RetentionSweeper {
	if schedule == "" {
		schedule = "30 0 * * *"
	}
	return &RetentionSweeper{
		dbLogger: dbLogger,
		policy:   policy,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep. A retention of zero days disables it entirely,
// which keeps audit events forever.
func (s *RetentionSweeper) Start() error {
	if s.policy.RetentionDays <= 0 {
		s.logger.Info("Audit retention disabled, events kept indefinitely")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("Audit retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).
		WithField("retention_days", s.policy.RetentionDays).
		Info("Audit retention sweeper started")
	return nil
}

// Sweep deletes events older than the retention window.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.policy.RetentionDays)
	removed, err := s.dbLogger.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	s.logger.WithField("removed", removed).
		WithField("cutoff", cutoff.Format(time.RFC3339)).
		Info("Audit retention sweep completed")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
