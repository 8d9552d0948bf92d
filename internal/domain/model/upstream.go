package model

import "time"

// UpstreamEmail is one campaign entry as reported by either provider view.
// Pointer fields are nil when the source omitted them, which lets the
// reconciler distinguish "absent" from zero.
type UpstreamEmail struct {
	ID         string
	Name       string
	Status     string
	Type       string
	SentAt     *time.Time
	LeadsCount *int64
	Sent       *int64
	Delivered  *int64
	Opened     *int64
	Clicked    *int64
	Bounced    *int64
	OpenRate   *float64
	ClickRate  *float64
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}
