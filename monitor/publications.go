package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marqlet-monitor/domain"
)

// PublicationLister is the full publication surface the service layer needs.
type PublicationLister interface {
	PublicationStore
	ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error)
	ListPublicationsForUser(ctx context.Context, userID string) ([]domain.Publication, error)
	MarkPublicationRead(ctx context.Context, caseID, identityKey string) error
}

// PublicationService exposes publication reads and the manual entry path,
// enforcing case ownership on every case-scoped call.
type PublicationService struct {
	cases CaseStore
	pubs  PublicationLister
}

// NewPublicationService creates a PublicationService.
func NewPublicationService(cases CaseStore, pubs PublicationLister) *PublicationService {
	return &PublicationService{cases: cases, pubs: pubs}
}

// ManualEntry is a publication typed in by the user rather than ingested.
type ManualEntry struct {
	MovementName string
	Content      string
	PublishedAt  time.Time
}

// ListForCase returns a case's publications, newest first.
func (s *PublicationService) ListForCase(ctx context.Context, userID, caseID string) ([]domain.Publication, error) {
	if _, err := s.requireCase(ctx, userID, caseID); err != nil {
		return nil, err
	}
	return s.pubs.ListPublicationsByCase(ctx, caseID)
}

// ListForUser returns all publications across the user's cases, newest first.
func (s *PublicationService) ListForUser(ctx context.Context, userID string) ([]domain.Publication, error) {
	return s.pubs.ListPublicationsForUser(ctx, userID)
}

// MarkRead flags one publication as read.
func (s *PublicationService) MarkRead(ctx context.Context, userID, caseID, identityKey string) error {
	if _, err := s.requireCase(ctx, userID, caseID); err != nil {
		return err
	}
	return s.pubs.MarkPublicationRead(ctx, caseID, identityKey)
}

// CreateManual stores a hand-entered publication under a synthetic identity
// key, keeping the unique-identity contract of the ingested path.
func (s *PublicationService) CreateManual(ctx context.Context, userID, caseID string, entry ManualEntry) (domain.Publication, error) {
	c, err := s.requireCase(ctx, userID, caseID)
	if err != nil {
		return domain.Publication{}, err
	}
	pub := domain.Publication{
		CaseID:       c.ID,
		UserID:       c.OwnerID,
		Source:       domain.SourceManual,
		MovementName: entry.MovementName,
		Content:      entry.Content,
		PublishedAt:  entry.PublishedAt,
		IdentityKey:  fmt.Sprintf("MANUAL_%s_%s", caseID, uuid.NewString()),
	}
	if _, err := s.pubs.InsertPublication(ctx, pub); err != nil {
		return domain.Publication{}, err
	}
	return pub, nil
}

func (s *PublicationService) requireCase(ctx context.Context, userID, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("loading case %s: %w", caseID, err)
	}
	if c == nil {
		return nil, domain.ErrCaseNotFound
	}
	if c.OwnerID != userID {
		return nil, domain.ErrNotCaseOwner
	}
	return c, nil
}
