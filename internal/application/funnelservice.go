package application

import (
	"context"
	"strings"
	"time"

	"github.com/troia/campaignsync/internal/domain/match"
	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// FunnelService records local funnel events and joins them, at read time,
// with the canonical campaign cache by name matching. No link is stored.
type FunnelService struct {
	events    driven.FunnelStore
	campaigns driven.CampaignStore
	now       func() time.Time
}

// NewFunnelService creates a new FunnelService with the required dependencies.
func NewFunnelService(events driven.FunnelStore, campaigns driven.CampaignStore) *FunnelService {
	return &FunnelService{
		events:    events,
		campaigns: campaigns,
		now:       time.Now,
	}
}

// RecordPageView appends a page view for event from src.
func (s *FunnelService) RecordPageView(ctx context.Context, event, src, userAgent string) error {
	return s.events.Record(ctx, model.FunnelEvent{
		Kind:      model.FunnelKindPageView,
		Event:     strings.TrimSpace(event),
		Source:    strings.TrimSpace(src),
		UserAgent: userAgent,
		CreatedAt: s.now(),
	})
}

// RecordLead appends a lead for event. An empty src is recorded as
// model.DefaultFunnelSource.
func (s *FunnelService) RecordLead(ctx context.Context, event, src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		src = model.DefaultFunnelSource
	}
	return s.events.Record(ctx, model.FunnelEvent{
		Kind:      model.FunnelKindLead,
		Event:     strings.TrimSpace(event),
		Source:    src,
		CreatedAt: s.now(),
	})
}

// ListLeads returns up to limit leads, newest first.
func (s *FunnelService) ListLeads(ctx context.Context, limit int) ([]model.FunnelEvent, error) {
	return s.events.ListLeads(ctx, limit)
}

// Metrics returns per-event funnel counts, each paired with the first cached
// campaign whose name matches the event key. Campaigns are considered in the
// store's order (most recently sent first).
func (s *FunnelService) Metrics(ctx context.Context) ([]model.FunnelMetrics, error) {
	summaries, err := s.events.Summaries(ctx)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.campaigns.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.FunnelMetrics, 0, len(summaries))
	for _, sum := range summaries {
		m := model.FunnelMetrics{FunnelSummary: sum}
		for i := range campaigns {
			if match.Matches(sum.Event, campaigns[i].Name) {
				c := campaigns[i]
				m.Campaign = &c
				break
			}
		}
		out = append(out, m)
	}

	return out, nil
}
