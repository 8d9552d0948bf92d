package rdstation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/troia/campaignsync/internal/domain/model"
)

const (
	emailsPath    = "/platform/emails"
	analyticsPath = "/platform/analytics/emails"
)

// FetchCampaignList pages through the email listing, up to maxPages pages of
// pageSize entries. See hasMorePages for how continuation is decided.
func (c *Client) FetchCampaignList(ctx context.Context, pageSize, maxPages int) ([]model.UpstreamEmail, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []model.UpstreamEmail

	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(pageSize))

		resp, err := c.RequestWithAuth(ctx, emailsPath, query)
		if err != nil {
			return nil, fmt.Errorf("listing emails (page %d): %w", page, err)
		}

		if resp.Payload.IsRaw() {
			slog.Warn("email listing page was not JSON, stopping pagination", "page", page)
			break
		}

		entries := resp.Payload.items("items", "emails", "data", "campaigns", "results")
		for _, e := range entries {
			all = append(all, mapEmail(e))
		}

		slog.Debug("email listing page fetched", "page", page, "entries", len(entries))

		if !hasMorePages(readPageMeta(resp.Payload), page, pageSize, len(entries)) {
			break
		}
	}

	if all == nil {
		all = []model.UpstreamEmail{}
	}

	return all, nil
}

// FetchAnalytics retrieves the email analytics report for the inclusive date
// range. The endpoint is not paginated.
func (c *Client) FetchAnalytics(ctx context.Context, startDate, endDate string) ([]model.UpstreamEmail, error) {
	query := url.Values{}
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	resp, err := c.RequestWithAuth(ctx, analyticsPath, query)
	if err != nil {
		return nil, fmt.Errorf("fetching email analytics %s..%s: %w", startDate, endDate, err)
	}

	if resp.Payload.IsRaw() {
		slog.Warn("email analytics response was not JSON, treating as empty", "start_date", startDate, "end_date", endDate)
		return []model.UpstreamEmail{}, nil
	}

	entries := resp.Payload.items("emails", "items", "data")
	out := make([]model.UpstreamEmail, 0, len(entries))
	for _, e := range entries {
		out = append(out, mapEmail(e))
	}

	return out, nil
}

// pageMeta is whatever pagination metadata a listing response carried. The
// provider is inconsistent: some responses have page/total_pages, some a
// next_page pointer, some nothing at all.
type pageMeta struct {
	page       *int64
	totalPages *int64
	hasNext    bool // a next_page field was present
	next       bool // ...and pointed somewhere
}

func readPageMeta(p Payload) pageMeta {
	root, ok := p.Data.(map[string]any)
	if !ok {
		return pageMeta{}
	}

	sources := []map[string]any{root}
	for _, k := range []string{"meta", "pagination"} {
		if nested, ok := root[k].(map[string]any); ok {
			sources = append(sources, nested)
		}
	}

	var meta pageMeta
	for _, m := range sources {
		if meta.totalPages == nil {
			meta.totalPages = intField(m, "total_pages")
		}
		if meta.page == nil {
			meta.page = intField(m, "page", "current_page")
		}
		if v, ok := m["next_page"]; ok && !meta.hasNext {
			meta.hasNext = true
			meta.next = truthy(v)
		}
	}
	return meta
}

// hasMorePages decides whether to request another listing page.
//
// In order of preference: an explicit total_pages (compared with the echoed
// or requested page), then a next_page pointer, then the full-page heuristic
// where a page holding exactly pageSize entries is taken as evidence of more
// data. The heuristic is an approximation: a listing whose size is an exact
// multiple of pageSize costs one extra, empty request, and a provider that
// silently caps page size below pageSize stops after the first page. A short
// or empty page always stops pagination regardless of metadata.
func hasMorePages(meta pageMeta, requestedPage, pageSize, got int) bool {
	if got == 0 || got < pageSize {
		return false
	}

	if meta.totalPages != nil {
		current := int64(requestedPage)
		if meta.page != nil {
			current = *meta.page
		}
		return current < *meta.totalPages
	}

	if meta.hasNext {
		return meta.next
	}

	return true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		return x.String() != "0"
	default:
		return true
	}
}
