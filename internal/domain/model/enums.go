package model

// SyncStatus represents the lifecycle state of a sync run.
type SyncStatus string

const (
	SyncStatusRunning        SyncStatus = "running"
	SyncStatusSuccess        SyncStatus = "success"
	SyncStatusSkippedNoToken SyncStatus = "skipped_no_token"
	SyncStatusError          SyncStatus = "error"
)

// Terminal reports whether s is one of the final run states.
func (s SyncStatus) Terminal() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusSkippedNoToken, SyncStatusError:
		return true
	default:
		return false
	}
}

// FunnelKind distinguishes the local funnel event types.
type FunnelKind string

const (
	FunnelKindPageView FunnelKind = "pageview"
	FunnelKindLead     FunnelKind = "lead"
)

// DefaultFunnelSource is recorded when a lead arrives without a source.
const DefaultFunnelSource = "direct"
