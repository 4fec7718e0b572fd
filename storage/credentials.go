package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"marqlet-monitor/domain"
)

type credentialEntity struct {
	entity
	Token      string `json:"Token"`
	PhoneID    string `json:"PhoneID"`
	APIBaseURL string `json:"ApiUrl"`
	FromNumber string `json:"FromNumber"`
}

// GetChannelCredential looks up the per-user messaging channel credential.
// Absence is not an error; the caller falls back to the process default.
func (s *Storage) GetChannelCredential(ctx context.Context, userID string) (*domain.ChannelCredential, error) {
	ent, err := s.credTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var cred credentialEntity
	if err := json.Unmarshal(ent.Value, &cred); err != nil {
		return nil, err
	}
	return &domain.ChannelCredential{
		Token:      cred.Token,
		PhoneID:    cred.PhoneID,
		APIBaseURL: cred.APIBaseURL,
		FromNumber: cred.FromNumber,
	}, nil
}

type profileEntity struct {
	entity
	Phone string `json:"Phone"`
}

// GetRecipientPhone returns the user's notification phone number, or empty
// when none is configured. Missing profiles are a silent skip downstream,
// never an error.
func (s *Storage) GetRecipientPhone(ctx context.Context, userID string) (string, error) {
	ent, err := s.profileTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return "", nil
		}
		return "", err
	}
	var profile profileEntity
	if err := json.Unmarshal(ent.Value, &profile); err != nil {
		return "", err
	}
	return profile.Phone, nil
}
