package model

import "time"

// SyncRun is the audit record of one reconciliation run. A run is inserted
// with SyncStatusRunning and finalized exactly once with a terminal status.
type SyncRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	RangeStart string // YYYY-MM-DD
	RangeEnd   string // YYYY-MM-DD
	Status     SyncStatus
	Counts     SyncCounts
	Error      string
}

// SyncCounts records how much data one run observed and wrote.
type SyncCounts struct {
	EmailsTotal    int
	EmailsUseful   int
	AnalyticsTotal int
	UpsertsTotal   int
}
