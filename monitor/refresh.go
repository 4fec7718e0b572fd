package monitor

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
	"marqlet-monitor/storage"
)

// RefreshSource hands out queued docket refresh jobs.
type RefreshSource interface {
	DequeueRefresh(ctx context.Context) (*storage.RefreshMessage, error)
	DeleteRefresh(ctx context.Context, messageID, popReceipt string) error
}

// DocketRefresher re-checks one case's docket.
type DocketRefresher interface {
	Refresh(ctx context.Context, caseID string) (IngestResult, error)
}

// RefreshConsumer drains the docket refresh queue. Jobs are fire-and-forget:
// a failed refresh is logged and its message deleted, the next sweep will
// enqueue the case again.
type RefreshConsumer struct {
	source    RefreshSource
	refresher DocketRefresher
	idle      time.Duration
	logger    *log.Logger
}

// NewRefreshConsumer creates a consumer that sleeps idle between polls when
// the queue is empty.
func NewRefreshConsumer(source RefreshSource, refresher DocketRefresher, idle time.Duration, logger *log.Logger) *RefreshConsumer {
	if idle <= 0 {
		idle = time.Second
	}
	return &RefreshConsumer{source: source, refresher: refresher, idle: idle, logger: logger}
}

// Run processes refresh jobs until ctx is cancelled.
func (c *RefreshConsumer) Run(ctx context.Context) {
	c.logger.Info("refresh consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("refresh consumer stopped")
			return
		}
		if !c.step(ctx) {
			c.sleep(ctx)
		}
	}
}

// step handles one message and reports whether there may be more work queued.
func (c *RefreshConsumer) step(ctx context.Context) bool {
	msg, err := c.source.DequeueRefresh(ctx)
	if err != nil {
		if msg != nil {
			// Poison message: drop it so the queue keeps moving.
			c.logger.WithError(err).Error("dropping malformed refresh job")
			c.delete(ctx, msg)
			return true
		}
		c.logger.WithError(err).Error("refresh dequeue failed")
		return false
	}
	if msg == nil {
		return false
	}

	result, err := c.refresher.Refresh(ctx, msg.Job.CaseID)
	switch {
	case errors.Is(err, domain.ErrCaseNotFound):
		c.logger.WithField("case", msg.Job.CaseID).Warn("refresh job for missing case")
	case err != nil:
		c.logger.WithField("case", msg.Job.CaseID).WithError(err).Error("docket refresh failed")
	case result.NewCount > 0:
		c.logger.WithFields(log.Fields{"case": msg.Job.CaseID, "new_count": result.NewCount}).
			Debug("scheduled refresh stored new movements")
	}
	c.delete(ctx, msg)
	return true
}

func (c *RefreshConsumer) delete(ctx context.Context, msg *storage.RefreshMessage) {
	if err := c.source.DeleteRefresh(ctx, msg.MessageID, msg.PopReceipt); err != nil {
		c.logger.WithError(err).Error("refresh delete failed")
	}
}

func (c *RefreshConsumer) sleep(ctx context.Context) {
	timer := time.NewTimer(c.idle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
