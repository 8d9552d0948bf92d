package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troia/campaignsync/internal/domain/model"
)

func TestCampaignRepo_UpsertAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepo(db)
	ctx := context.Background()

	sentAt := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	err := repo.Upsert(ctx, model.Campaign{
		ID:        "42",
		Name:      "Campanha Hospitalar SP",
		SentAt:    &sentAt,
		Sent:      100,
		Delivered: 98,
		Opened:    40,
		Clicked:   10,
		Bounced:   2,
		OpenRate:  40,
		ClickRate: 10,
		Status:    "SENT",
		Type:      "email",
		LeadCount: 100,
		CreatedAt: &created,
	})
	require.NoError(t, err)

	campaigns, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)

	c := campaigns[0]
	assert.Equal(t, "42", c.ID)
	assert.Equal(t, "Campanha Hospitalar SP", c.Name)
	require.NotNil(t, c.SentAt)
	assert.True(t, sentAt.Equal(*c.SentAt))
	assert.Equal(t, int64(100), c.Sent)
	assert.Equal(t, int64(98), c.Delivered)
	assert.Equal(t, int64(40), c.Opened)
	assert.Equal(t, int64(10), c.Clicked)
	assert.Equal(t, int64(2), c.Bounced)
	assert.InDelta(t, 40.0, c.OpenRate, 0.0001)
	assert.InDelta(t, 10.0, c.ClickRate, 0.0001)
	assert.Equal(t, "SENT", c.Status)
	assert.Equal(t, int64(100), c.LeadCount)
	require.NotNil(t, c.CreatedAt)
	assert.Nil(t, c.UpdatedAt)
	assert.False(t, c.CachedAt.IsZero())
}

func TestCampaignRepo_UpsertReplacesWholeRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "7", Name: "First", Sent: 10, Opened: 5, Status: "SENT"}))
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "7", Name: "Second", Sent: 20}))

	campaigns, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "Second", campaigns[0].Name)
	assert.Equal(t, int64(20), campaigns[0].Sent)
	assert.Equal(t, int64(0), campaigns[0].Opened, "replace does not merge with the previous row")
	assert.Equal(t, "", campaigns[0].Status)
}

func TestCampaignRepo_ListOrdersBySendDescNullsLast(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepo(db)
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "a", Name: "unsent"}))
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "b", Name: "older", SentAt: &older}))
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "c", Name: "newer", SentAt: &newer}))

	campaigns, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 3)
	assert.Equal(t, "c", campaigns[0].ID)
	assert.Equal(t, "b", campaigns[1].ID)
	assert.Equal(t, "a", campaigns[2].ID)
}

func TestCampaignRepo_Freshness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCampaignRepo(db)
	ctx := context.Background()

	f, err := repo.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Campaigns)
	assert.Nil(t, f.LastCachedAt)

	cachedAt := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "1", Name: "x", CachedAt: cachedAt.Add(-time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, model.Campaign{ID: "2", Name: "y", CachedAt: cachedAt}))

	f, err = repo.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Campaigns)
	require.NotNil(t, f.LastCachedAt)
	assert.True(t, cachedAt.Equal(*f.LastCachedAt))
}
