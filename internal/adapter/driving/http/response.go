package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/troia/campaignsync/internal/application"
	"github.com/troia/campaignsync/internal/domain/match"
	"github.com/troia/campaignsync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// okResponse acknowledges a write that has no other result.
type okResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the JSON representation of a health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// TrackRequest is the JSON body for page view and lead events.
type TrackRequest struct {
	Event string `json:"event"`
	Src   string `json:"src"`
}

// SyncRunResponse is the JSON representation of one sync audit record.
type SyncRunResponse struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"started_at"`
	FinishedAt     *string `json:"finished_at"`
	RangeStart     string  `json:"range_start"`
	RangeEnd       string  `json:"range_end"`
	Status         string  `json:"status"`
	EmailsTotal    int     `json:"emails_total"`
	EmailsUseful   int     `json:"emails_useful"`
	AnalyticsTotal int     `json:"analytics_total"`
	UpsertsTotal   int     `json:"upserts_total"`
	Error          string  `json:"error,omitempty"`
}

// CacheResponse describes how fresh the campaign cache is.
type CacheResponse struct {
	Campaigns    int     `json:"campaigns"`
	LastCachedAt *string `json:"last_cached_at"`
}

// CredentialResponse is the non-secret view of the provider credential.
type CredentialResponse struct {
	Present   bool    `json:"present"`
	Expired   bool    `json:"expired"`
	ExpiresAt *string `json:"expires_at"`
	UpdatedAt *string `json:"updated_at"`
}

// DiagnosticsResponse is the JSON representation of the sync status view.
type DiagnosticsResponse struct {
	Runs       []SyncRunResponse  `json:"runs"`
	Cache      CacheResponse      `json:"cache"`
	Credential CredentialResponse `json:"credential"`
}

// CampaignResponse is the JSON representation of a cached campaign.
type CampaignResponse struct {
	ID        string  `json:"campaign_id"`
	Synthetic bool    `json:"synthetic_id"`
	Name      string  `json:"campaign_name"`
	SentAt    *string `json:"sent_at"`
	Sent      int64   `json:"sent"`
	Delivered int64   `json:"delivered"`
	Opened    int64   `json:"opened"`
	Clicked   int64   `json:"clicked"`
	Bounced   int64   `json:"bounced"`
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
	Status    string  `json:"status"`
	Type      string  `json:"type"`
	LeadCount int64   `json:"lead_count"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
	CachedAt  string  `json:"cached_at"`
}

// LeadResponse is the JSON representation of a recorded lead.
type LeadResponse struct {
	ID        int64  `json:"id"`
	Event     string `json:"event"`
	Src       string `json:"src"`
	CreatedAt string `json:"createdAt"`
}

// MetricsResponse is the dashboard's funnel view.
type MetricsResponse struct {
	UpdatedAt string                 `json:"updatedAt"`
	Campaigns []FunnelMetricResponse `json:"campaigns"`
}

// FunnelMetricResponse is one funnel event key with its counts and, when a
// cached campaign matched by name, that campaign's email statistics.
type FunnelMetricResponse struct {
	Event     string   `json:"event"`
	PageViews int64    `json:"pageViews"`
	Leads     int64    `json:"leads"`
	LastView  *string  `json:"lastView,omitempty"`
	RDName    *string  `json:"rdName,omitempty"`
	Sent      *int64   `json:"sent,omitempty"`
	Delivered *int64   `json:"delivered,omitempty"`
	Opened    *int64   `json:"opened,omitempty"`
	Clicked   *int64   `json:"clicked,omitempty"`
	OpenRate  *float64 `json:"openRate,omitempty"`
	ClickRate *float64 `json:"clickRate,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toSyncRunResponse(run model.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:             run.ID,
		StartedAt:      formatTime(run.StartedAt),
		FinishedAt:     formatOptionalTime(run.FinishedAt),
		RangeStart:     run.RangeStart,
		RangeEnd:       run.RangeEnd,
		Status:         string(run.Status),
		EmailsTotal:    run.Counts.EmailsTotal,
		EmailsUseful:   run.Counts.EmailsUseful,
		AnalyticsTotal: run.Counts.AnalyticsTotal,
		UpsertsTotal:   run.Counts.UpsertsTotal,
		Error:          run.Error,
	}
}

func toDiagnosticsResponse(d *application.Diagnostics) DiagnosticsResponse {
	runs := make([]SyncRunResponse, 0, len(d.Runs))
	for _, run := range d.Runs {
		runs = append(runs, toSyncRunResponse(run))
	}

	resp := DiagnosticsResponse{
		Runs: runs,
		Cache: CacheResponse{
			Campaigns:    d.Cache.Campaigns,
			LastCachedAt: formatOptionalTime(d.Cache.LastCachedAt),
		},
		Credential: CredentialResponse{
			Present: d.Credential.Present,
			Expired: d.Credential.Expired,
		},
	}
	if d.Credential.Present {
		resp.Credential.ExpiresAt = formatOptionalTime(&d.Credential.ExpiresAt)
		resp.Credential.UpdatedAt = formatOptionalTime(&d.Credential.UpdatedAt)
	}
	return resp
}

func toCampaignResponse(c model.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:        c.ID,
		Synthetic: match.IsSynthetic(c.ID),
		Name:      c.Name,
		SentAt:    formatOptionalTime(c.SentAt),
		Sent:      c.Sent,
		Delivered: c.Delivered,
		Opened:    c.Opened,
		Clicked:   c.Clicked,
		Bounced:   c.Bounced,
		OpenRate:  c.OpenRate,
		ClickRate: c.ClickRate,
		Status:    c.Status,
		Type:      c.Type,
		LeadCount: c.LeadCount,
		CreatedAt: formatOptionalTime(c.CreatedAt),
		UpdatedAt: formatOptionalTime(c.UpdatedAt),
		CachedAt:  formatTime(c.CachedAt),
	}
}

func toLeadResponse(ev model.FunnelEvent) LeadResponse {
	return LeadResponse{
		ID:        ev.ID,
		Event:     ev.Event,
		Src:       ev.Source,
		CreatedAt: formatTime(ev.CreatedAt),
	}
}

func toFunnelMetricResponse(m model.FunnelMetrics) FunnelMetricResponse {
	resp := FunnelMetricResponse{
		Event:     m.Event,
		PageViews: m.PageViews,
		Leads:     m.Leads,
		LastView:  formatOptionalTime(m.LastView),
	}
	if c := m.Campaign; c != nil {
		resp.RDName = &c.Name
		resp.Sent = &c.Sent
		resp.Delivered = &c.Delivered
		resp.Opened = &c.Opened
		resp.Clicked = &c.Clicked
		resp.OpenRate = &c.OpenRate
		resp.ClickRate = &c.ClickRate
	}
	return resp
}
