package driven

import (
	"context"

	"github.com/troia/campaignsync/internal/domain/model"
)

// FunnelStore defines the driven port for locally observed funnel events.
type FunnelStore interface {
	Record(ctx context.Context, ev model.FunnelEvent) error
	Summaries(ctx context.Context) ([]model.FunnelSummary, error)
	ListLeads(ctx context.Context, limit int) ([]model.FunnelEvent, error)
}
