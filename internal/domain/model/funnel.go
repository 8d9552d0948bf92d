package model

import "time"

// FunnelEvent is a locally observed page view or lead for a landing-page
// event key such as "hospitalar" or "showsafra".
type FunnelEvent struct {
	ID        int64
	Kind      FunnelKind
	Event     string
	Source    string
	UserAgent string
	CreatedAt time.Time
}

// FunnelSummary aggregates the funnel events recorded for one event key.
type FunnelSummary struct {
	Event     string
	PageViews int64
	Leads     int64
	LastView  *time.Time
}

// FunnelMetrics is a FunnelSummary joined with the canonical campaign whose
// name matches its event key, when one exists.
type FunnelMetrics struct {
	FunnelSummary
	Campaign *Campaign
}
