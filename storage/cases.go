package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"marqlet-monitor/domain"
)

// Case rows live in a single partition; the pipeline only reads them.
const casePartition = "case"

type caseEntity struct {
	entity
	OwnerID       string `json:"OwnerID"`
	ProcessNumber string `json:"ProcessNumber"`
	Tribunal      string `json:"Tribunal"`
	Monitored     bool   `json:"Monitored"`
}

func decodeCase(data []byte) (domain.Case, error) {
	var ent caseEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Case{}, err
	}
	return domain.Case{
		ID:            ent.RowKey,
		OwnerID:       ent.OwnerID,
		ProcessNumber: ent.ProcessNumber,
		Tribunal:      domain.Tribunal(ent.Tribunal),
		Monitored:     ent.Monitored,
	}, nil
}

// GetCase retrieves a case if present.
func (s *Storage) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	ent, err := s.caseTable.GetEntity(ctx, casePartition, caseID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	c, err := decodeCase(ent.Value)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListMonitoredCases returns every case flagged for docket monitoring. The
// scheduler derives both its refresh sweep and its reminder user set from
// this listing.
func (s *Storage) ListMonitoredCases(ctx context.Context) ([]domain.Case, error) {
	filter := "Monitored eq true"
	pager := s.caseTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cases := []domain.Case{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			c, err := decodeCase(raw)
			if err != nil {
				return nil, err
			}
			cases = append(cases, c)
		}
	}
	return cases, nil
}
