package monitor

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
)

// Fetcher queries an external docket service for a process's movements.
// Implementations degrade every external failure to an empty result.
type Fetcher interface {
	Movements(ctx context.Context, processNumber string, tribunal domain.Tribunal) []domain.Movement
}

// PublicationStore persists canonical movements and answers which identity
// keys are already known for a case.
type PublicationStore interface {
	KnownIdentityKeys(ctx context.Context, caseID string) (map[string]struct{}, error)
	InsertPublication(ctx context.Context, pub domain.Publication) (bool, error)
}

// CaseStore reads the case records the pipeline monitors.
type CaseStore interface {
	GetCase(ctx context.Context, caseID string) (*domain.Case, error)
	ListMonitoredCases(ctx context.Context) ([]domain.Case, error)
}

// UpdateNotifier announces freshly ingested publications to interested
// consumers (the UI tier subscribes to these). Notification failures are the
// notifier's problem; ingestion never fails because of them.
type UpdateNotifier interface {
	NotifyNewPublications(ctx context.Context, userID, caseID string, count int)
}

// IngestResult describes what one docket check actually did.
type IngestResult struct {
	NewCount     int                  `json:"newCount"`
	Publications []domain.Publication `json:"publications"`
}

// Ingestor runs the docket ingestion path: fetch, normalize, dedup against
// stored identity keys, persist what is new.
type Ingestor struct {
	fetcher  Fetcher
	pubs     PublicationStore
	cases    CaseStore
	notifier UpdateNotifier
	logger   *log.Logger
}

// NewIngestor creates an Ingestor. notifier may be nil.
func NewIngestor(fetcher Fetcher, pubs PublicationStore, cases CaseStore, notifier UpdateNotifier, logger *log.Logger) *Ingestor {
	return &Ingestor{fetcher: fetcher, pubs: pubs, cases: cases, notifier: notifier, logger: logger}
}

// CheckForNewMovements refreshes one case's docket on behalf of a user. The
// case must exist and belong to the caller; both failures are hard errors.
func (i *Ingestor) CheckForNewMovements(ctx context.Context, userID, caseID string) (IngestResult, error) {
	c, err := i.cases.GetCase(ctx, caseID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("loading case %s: %w", caseID, err)
	}
	if c == nil {
		return IngestResult{}, domain.ErrCaseNotFound
	}
	if c.OwnerID != userID {
		return IngestResult{}, domain.ErrNotCaseOwner
	}
	return i.ingest(ctx, c)
}

// Refresh refreshes one case's docket on behalf of the scheduler, which acts
// as the system and skips the ownership check.
func (i *Ingestor) Refresh(ctx context.Context, caseID string) (IngestResult, error) {
	c, err := i.cases.GetCase(ctx, caseID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("loading case %s: %w", caseID, err)
	}
	if c == nil {
		return IngestResult{}, domain.ErrCaseNotFound
	}
	return i.ingest(ctx, c)
}

func (i *Ingestor) ingest(ctx context.Context, c *domain.Case) (IngestResult, error) {
	result := IngestResult{Publications: []domain.Publication{}}

	movements := i.fetcher.Movements(ctx, c.ProcessNumber, c.Tribunal)
	if len(movements) == 0 {
		return result, nil
	}

	known, err := i.pubs.KnownIdentityKeys(ctx, c.ID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("loading known identities for case %s: %w", c.ID, err)
	}

	processNumber := digits(c.ProcessNumber)
	for _, mov := range movements {
		key := domain.IdentityKey(c.Tribunal, processNumber, mov.Code, mov.RawDate)
		if _, seen := known[key]; seen {
			continue
		}
		pub := domain.Publication{
			CaseID:       c.ID,
			UserID:       c.OwnerID,
			Source:       c.Tribunal,
			MovementCode: mov.Code,
			MovementName: mov.Name,
			Content:      mov.Content(),
			PublishedAt:  mov.PublishedAt,
			IdentityKey:  key,
		}
		created, err := i.pubs.InsertPublication(ctx, pub)
		if err != nil {
			return IngestResult{}, fmt.Errorf("persisting movement %s: %w", key, err)
		}
		if !created {
			// A concurrent check persisted the same movement first.
			continue
		}
		result.NewCount++
		result.Publications = append(result.Publications, pub)
	}

	if result.NewCount > 0 {
		i.logger.WithFields(log.Fields{
			"case":      c.ID,
			"tribunal":  c.Tribunal,
			"new_count": result.NewCount,
		}).Info("docket check found new movements")
		if i.notifier != nil {
			i.notifier.NotifyNewPublications(ctx, c.OwnerID, c.ID, result.NewCount)
		}
	}
	return result, nil
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
