package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
	"marqlet-monitor/storage"
)

// ReminderRunner executes one reminder pass for a user.
type ReminderRunner interface {
	RunForUser(ctx context.Context, userID string) ([]domain.Task, error)
}

// RefreshQueue accepts docket refresh jobs.
type RefreshQueue interface {
	EnqueueRefresh(ctx context.Context, job storage.RefreshJob) error
}

// Scheduler owns the periodic work the legacy system left to client polling:
// a reminder sweep over every user with monitored cases, and a refresh sweep
// enqueueing one docket check per monitored case.
type Scheduler struct {
	cases            CaseStore
	reminders        ReminderRunner
	queue            RefreshQueue
	reminderInterval time.Duration
	refreshInterval  time.Duration
	logger           *log.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(cases CaseStore, reminders ReminderRunner, queue RefreshQueue, reminderInterval, refreshInterval time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		cases:            cases,
		reminders:        reminders,
		queue:            queue,
		reminderInterval: reminderInterval,
		refreshInterval:  refreshInterval,
		logger:           logger,
	}
}

// Run drives both sweeps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	remTicker := time.NewTicker(s.reminderInterval)
	defer remTicker.Stop()
	refTicker := time.NewTicker(s.refreshInterval)
	defer refTicker.Stop()

	s.logger.WithFields(log.Fields{
		"reminder_interval": s.reminderInterval.String(),
		"refresh_interval":  s.refreshInterval.String(),
	}).Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-remTicker.C:
			s.reminderSweep(ctx)
		case <-refTicker.C:
			s.refreshSweep(ctx)
		}
	}
}

func (s *Scheduler) reminderSweep(ctx context.Context) {
	cases, err := s.cases.ListMonitoredCases(ctx)
	if err != nil {
		s.logger.WithError(err).Error("reminder sweep: listing monitored cases failed")
		return
	}
	seen := map[string]struct{}{}
	for _, c := range cases {
		if _, done := seen[c.OwnerID]; done {
			continue
		}
		seen[c.OwnerID] = struct{}{}

		claimed, err := s.reminders.RunForUser(ctx, c.OwnerID)
		if err != nil {
			s.logger.WithField("user", c.OwnerID).WithError(err).Error("reminder pass failed")
			continue
		}
		if len(claimed) > 0 {
			s.logger.WithFields(log.Fields{"user": c.OwnerID, "claimed": len(claimed)}).
				Info("reminder pass handled tasks")
		}
	}
}

func (s *Scheduler) refreshSweep(ctx context.Context) {
	cases, err := s.cases.ListMonitoredCases(ctx)
	if err != nil {
		s.logger.WithError(err).Error("refresh sweep: listing monitored cases failed")
		return
	}
	for _, c := range cases {
		job := storage.RefreshJob{ID: uuid.NewString(), CaseID: c.ID}
		if err := s.queue.EnqueueRefresh(ctx, job); err != nil {
			s.logger.WithField("case", c.ID).WithError(err).Error("refresh enqueue failed")
		}
	}
}
