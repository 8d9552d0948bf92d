package driven

import (
	"context"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
)

// SyncRunStore defines the driven port for the sync run audit trail.
type SyncRunStore interface {
	// Start inserts a run in the running state.
	Start(ctx context.Context, run model.SyncRun) error

	// Finish records the terminal status of a running run. It returns
	// ErrRunNotRunning if the run is unknown or already finalized.
	Finish(ctx context.Context, run model.SyncRun) error

	// ListRecent returns up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error)

	// MarkAbandoned finalizes every run still running that started before
	// cutoff as an error with the given message, returning how many changed.
	MarkAbandoned(ctx context.Context, cutoff time.Time, message string) (int64, error)
}
