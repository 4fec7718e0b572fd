package api

import (
	"context"

	"marqlet-monitor/domain"
	"marqlet-monitor/monitor"
)

// DocketChecker runs an on-demand docket check for one case.
type DocketChecker interface {
	CheckForNewMovements(ctx context.Context, userID, caseID string) (monitor.IngestResult, error)
}

// Publications serves the publication read-and-annotate surface.
type Publications interface {
	ListForCase(ctx context.Context, userID, caseID string) ([]domain.Publication, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Publication, error)
	MarkRead(ctx context.Context, userID, caseID, identityKey string) error
	CreateManual(ctx context.Context, userID, caseID string, entry monitor.ManualEntry) (domain.Publication, error)
}

// Reminders triggers a reminder pass for the calling user.
type Reminders interface {
	RunForUser(ctx context.Context, userID string) ([]domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
