package driven

import (
	"context"

	"github.com/troia/campaignsync/internal/domain/model"
)

// CampaignStore defines the driven port for the canonical campaign cache.
type CampaignStore interface {
	// Upsert inserts or fully replaces the campaign keyed by its ID.
	Upsert(ctx context.Context, c model.Campaign) error
	ListAll(ctx context.Context) ([]model.Campaign, error)
	Freshness(ctx context.Context) (model.CacheFreshness, error)
}
