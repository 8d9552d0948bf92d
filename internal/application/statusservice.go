package application

import (
	"context"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// Diagnostics is the operator-facing view of sync health: recent runs,
// cache freshness, and whether a usable credential exists.
type Diagnostics struct {
	Runs       []model.SyncRun
	Cache      model.CacheFreshness
	Credential model.CredentialSummary
}

// StatusService assembles Diagnostics from the stores. It depends only on
// port interfaces.
type StatusService struct {
	runs      driven.SyncRunStore
	campaigns driven.CampaignStore
	creds     driven.CredentialStore
	now       func() time.Time
}

// NewStatusService creates a new StatusService with the required dependencies.
func NewStatusService(runs driven.SyncRunStore, campaigns driven.CampaignStore, creds driven.CredentialStore) *StatusService {
	return &StatusService{
		runs:      runs,
		campaigns: campaigns,
		creds:     creds,
		now:       time.Now,
	}
}

// Diagnostics returns the last limit runs together with cache and credential
// state.
func (s *StatusService) Diagnostics(ctx context.Context, limit int) (*Diagnostics, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	cache, err := s.campaigns.Freshness(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &Diagnostics{
		Runs:       runs,
		Cache:      cache,
		Credential: summarizeCredential(cred, s.now()),
	}, nil
}

func summarizeCredential(cred *model.Credential, now time.Time) model.CredentialSummary {
	if cred == nil {
		return model.CredentialSummary{}
	}
	return model.CredentialSummary{
		Present:   true,
		ExpiresAt: time.Unix(cred.ExpiresAt, 0).UTC(),
		UpdatedAt: cred.UpdatedAt,
		Expired:   cred.ExpiresWithin(now, 0),
	}
}
