package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"marqlet-monitor/domain"
)

// Publications are partitioned by case; the row key is the movement identity
// key, so the table's key constraint is the dedup guarantee.
type publicationEntity struct {
	entity
	UserID          string `json:"UserID"`
	Source          string `json:"Source"`
	MovementCode    int    `json:"MovementCode"`
	MovementName    string `json:"MovementName"`
	Content         string `json:"Content"`
	PublishedAt     string `json:"PublishedAt"`
	PublishedAtType string `json:"PublishedAt@odata.type"`
	IsRead          bool   `json:"IsRead"`
}

func encodePublication(pub domain.Publication) publicationEntity {
	return publicationEntity{
		entity:          entity{PartitionKey: pub.CaseID, RowKey: pub.IdentityKey},
		UserID:          pub.UserID,
		Source:          string(pub.Source),
		MovementCode:    pub.MovementCode,
		MovementName:    pub.MovementName,
		Content:         pub.Content,
		PublishedAt:     pub.PublishedAt.UTC().Format(time.RFC3339),
		PublishedAtType: edmDateTime,
		IsRead:          pub.IsRead,
	}
}

func decodePublication(data []byte) (domain.Publication, error) {
	var ent publicationEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Publication{}, err
	}
	publishedAt, err := time.Parse(time.RFC3339, ent.PublishedAt)
	if err != nil {
		return domain.Publication{}, fmt.Errorf("publication %s has bad PublishedAt: %w", ent.RowKey, err)
	}
	return domain.Publication{
		CaseID:       ent.PartitionKey,
		UserID:       ent.UserID,
		Source:       domain.Tribunal(ent.Source),
		MovementCode: ent.MovementCode,
		MovementName: ent.MovementName,
		Content:      ent.Content,
		PublishedAt:  publishedAt,
		IdentityKey:  ent.RowKey,
		IsRead:       ent.IsRead,
	}, nil
}

// InsertPublication persists a canonical movement. A row whose identity key
// already exists is reported as created=false with no error: concurrent or
// repeated ingestion of the same movement is a no-op.
func (s *Storage) InsertPublication(ctx context.Context, pub domain.Publication) (bool, error) {
	payload, err := json.Marshal(encodePublication(pub))
	if err != nil {
		return false, err
	}
	if _, err := s.pubTable.AddEntity(ctx, payload, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 409 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// KnownIdentityKeys returns the identity keys already stored for a case.
func (s *Storage) KnownIdentityKeys(ctx context.Context, caseID string) (map[string]struct{}, error) {
	filter := "PartitionKey eq '" + caseID + "'"
	pager := s.pubTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	keys := map[string]struct{}{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent entity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			keys[ent.RowKey] = struct{}{}
		}
	}
	return keys, nil
}

// ListPublicationsByCase returns a case's publications, newest first.
func (s *Storage) ListPublicationsByCase(ctx context.Context, caseID string) ([]domain.Publication, error) {
	filter := "PartitionKey eq '" + caseID + "'"
	return s.listPublications(ctx, filter)
}

// ListPublicationsForUser returns all publications across the user's cases,
// newest first.
func (s *Storage) ListPublicationsForUser(ctx context.Context, userID string) ([]domain.Publication, error) {
	filter := "UserID eq '" + userID + "'"
	return s.listPublications(ctx, filter)
}

func (s *Storage) listPublications(ctx context.Context, filter string) ([]domain.Publication, error) {
	pager := s.pubTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	pubs := []domain.Publication{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			pub, err := decodePublication(raw)
			if err != nil {
				return nil, err
			}
			pubs = append(pubs, pub)
		}
	}
	sort.Slice(pubs, func(i, j int) bool { return pubs[i].PublishedAt.After(pubs[j].PublishedAt) })
	return pubs, nil
}

// MarkPublicationRead flips a publication's read flag.
func (s *Storage) MarkPublicationRead(ctx context.Context, caseID, identityKey string) error {
	update := struct {
		entity
		IsRead bool `json:"IsRead"`
	}{entity: entity{PartitionKey: caseID, RowKey: identityKey}, IsRead: true}

	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	if _, err := s.pubTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge}); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.ErrPublicationNotFound
		}
		return err
	}
	return nil
}
