package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/troia/campaignsync/internal/domain/match"
	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// sentStatusMarker is the substring the provider puts in the status of an
// email that has gone out ("SENT", "sent_with_errors", ...).
const sentStatusMarker = "sent"

// Reconciler merges the provider's email listing and email analytics report
// into one canonical campaign row per real-world campaign.
type Reconciler struct {
	client   driven.ProviderClient
	store    driven.CampaignStore
	pageSize int
	maxPages int
	now      func() time.Time
}

// NewReconciler creates a Reconciler that pages the listing with pageSize
// entries per page and at most maxPages pages.
func NewReconciler(client driven.ProviderClient, store driven.CampaignStore, pageSize, maxPages int) *Reconciler {
	return &Reconciler{
		client:   client,
		store:    store,
		pageSize: pageSize,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Reconcile fetches both views concurrently, merges them and upserts every
// resulting campaign. A fetch error leaves the cache untouched; a storage
// error aborts the remaining upserts.
func (r *Reconciler) Reconcile(ctx context.Context, startDate, endDate string) (model.SyncCounts, error) {
	var counts model.SyncCounts
	var listing, analytics []model.UpstreamEmail

	// No shared context: one fetch failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		listing, err = r.client.FetchCampaignList(ctx, r.pageSize, r.maxPages)
		return err
	})
	g.Go(func() error {
		var err error
		analytics, err = r.client.FetchAnalytics(ctx, startDate, endDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return counts, err
	}

	useful := filterUseful(listing)
	counts.EmailsTotal = len(listing)
	counts.EmailsUseful = len(useful)
	counts.AnalyticsTotal = len(analytics)

	campaigns := mergeViews(useful, analytics)

	cachedAt := r.now()
	for _, c := range campaigns {
		c.CachedAt = cachedAt
		if err := r.store.Upsert(ctx, c); err != nil {
			return counts, fmt.Errorf("upsert campaign cache: %w", err)
		}
		counts.UpsertsTotal++
	}

	return counts, nil
}

// filterUseful drops drafts and templates: an entry is kept when it has a
// send timestamp, at least one attributed lead, or a "sent" status.
func filterUseful(listing []model.UpstreamEmail) []model.UpstreamEmail {
	useful := make([]model.UpstreamEmail, 0, len(listing))
	for _, e := range listing {
		if isUseful(e) {
			useful = append(useful, e)
		}
	}
	return useful
}

func isUseful(e model.UpstreamEmail) bool {
	if e.SentAt != nil {
		return true
	}
	if e.LeadsCount != nil && *e.LeadsCount > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(e.Status), sentStatusMarker)
}

// pickCampaignID returns the entry's own identifier when present, and the
// synthetic name-derived key otherwise. The second return is false when
// neither an id nor a usable name exists.
func pickCampaignID(e model.UpstreamEmail) (string, bool) {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id, true
	}
	if match.Normalize(e.Name) == "" {
		return "", false
	}
	return match.SyntheticID(e.Name), true
}

// mergeViews seeds a mapping from the filtered listing and folds the
// analytics entries into it. Analytics entries without an id first try the
// listing entry with the same normalized name before falling back to the
// synthetic key. Results are ordered by id.
func mergeViews(listing, analytics []model.UpstreamEmail) []model.Campaign {
	merged := make(map[string]model.UpstreamEmail, len(listing)+len(analytics))
	byName := make(map[string]string, len(listing))

	for _, e := range listing {
		id, ok := pickCampaignID(e)
		if !ok {
			slog.Warn("listing entry has neither id nor name, skipping")
			continue
		}
		merged[id] = overlay(merged[id], e, false)
		if key := match.Normalize(e.Name); key != "" {
			if _, seen := byName[key]; !seen {
				byName[key] = id
			}
		}
	}

	for _, e := range analytics {
		id, ok := pickCampaignID(e)
		if !ok {
			slog.Warn("analytics entry has neither id nor name, skipping")
			continue
		}
		if strings.TrimSpace(e.ID) == "" {
			if listed, found := byName[match.Normalize(e.Name)]; found {
				id = listed
			}
		}
		merged[id] = overlay(merged[id], e, true)
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	campaigns := make([]model.Campaign, 0, len(ids))
	for _, id := range ids {
		campaigns = append(campaigns, toCampaign(id, merged[id]))
	}
	return campaigns
}

// overlay folds next into base. Fields next omits keep base's value. The name
// from next wins only when it is non-empty and either base has none or next
// is the analytics view. A rate base carried is dropped when next brings
// counts without a rate, so toCampaign recomputes it from the new counts.
func overlay(base, next model.UpstreamEmail, analytics bool) model.UpstreamEmail {
	out := base

	if out.ID == "" {
		out.ID = strings.TrimSpace(next.ID)
	}
	if next.Name != "" && (out.Name == "" || analytics) {
		out.Name = next.Name
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if next.Type != "" {
		out.Type = next.Type
	}

	out.SentAt = pick(next.SentAt, base.SentAt)
	out.LeadsCount = pick(next.LeadsCount, base.LeadsCount)
	out.Sent = pick(next.Sent, base.Sent)
	out.Delivered = pick(next.Delivered, base.Delivered)
	out.Opened = pick(next.Opened, base.Opened)
	out.Clicked = pick(next.Clicked, base.Clicked)
	out.Bounced = pick(next.Bounced, base.Bounced)
	out.CreatedAt = pick(next.CreatedAt, base.CreatedAt)
	out.UpdatedAt = pick(next.UpdatedAt, base.UpdatedAt)

	out.OpenRate = pick(next.OpenRate, base.OpenRate)
	if next.OpenRate == nil && (next.Sent != nil || next.Opened != nil) {
		out.OpenRate = nil
	}
	out.ClickRate = pick(next.ClickRate, base.ClickRate)
	if next.ClickRate == nil && (next.Sent != nil || next.Clicked != nil) {
		out.ClickRate = nil
	}

	return out
}

func pick[T any](next, base *T) *T {
	if next != nil {
		return next
	}
	return base
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// toCampaign resolves the merged optional fields into a canonical row. When
// no source reported a sent count, the attributed lead count stands in for
// it.
func toCampaign(id string, e model.UpstreamEmail) model.Campaign {
	sent := deref(e.Sent)
	if e.Sent == nil {
		sent = deref(e.LeadsCount)
	}

	c := model.Campaign{
		ID:        id,
		Name:      e.Name,
		SentAt:    e.SentAt,
		Sent:      sent,
		Delivered: deref(e.Delivered),
		Opened:    deref(e.Opened),
		Clicked:   deref(e.Clicked),
		Bounced:   deref(e.Bounced),
		Status:    e.Status,
		Type:      e.Type,
		LeadCount: deref(e.LeadsCount),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}

	if e.OpenRate != nil {
		c.OpenRate = *e.OpenRate
	} else {
		c.OpenRate = model.Rate(c.Opened, c.Sent)
	}
	if e.ClickRate != nil {
		c.ClickRate = *e.ClickRate
	} else {
		c.ClickRate = model.Rate(c.Clicked, c.Sent)
	}

	if c.Name == "" {
		c.Name = id
	}

	return c
}
