package model

import "time"

// Campaign is the canonical record for one real-world email campaign after
// the listing and analytics views have been reconciled. ID is either the
// provider's numeric identifier or a synthetic "name:<normalized>" key.
type Campaign struct {
	ID        string
	Name      string
	SentAt    *time.Time
	Sent      int64
	Delivered int64
	Opened    int64
	Clicked   int64
	Bounced   int64
	OpenRate  float64
	ClickRate float64
	Status    string
	Type      string
	LeadCount int64
	CreatedAt *time.Time // upstream created timestamp
	UpdatedAt *time.Time // upstream updated timestamp
	CachedAt  time.Time
}

// Rate returns count as a percentage of sent, or 0 when nothing was sent.
func Rate(count, sent int64) float64 {
	if sent == 0 {
		return 0
	}
	return float64(count) / float64(sent) * 100
}

// CacheFreshness describes the state of the canonical campaign cache.
type CacheFreshness struct {
	Campaigns    int
	LastCachedAt *time.Time
}
