// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// dateLayout is the provider's date format for analytics ranges.
const dateLayout = "2006-01-02"

// abandonedRunMessage is recorded on runs finalized by SweepAbandoned.
const abandonedRunMessage = "abandoned: run did not finish"

// SyncService runs the reconciliation on a fixed interval and on demand, and
// keeps an audit row per run. Runs are serialized: a trigger that arrives
// while a run is in flight waits for it and then performs its own run.
type SyncService struct {
	reconciler *Reconciler
	runs       driven.SyncRunStore
	interval   time.Duration
	lookback   time.Duration
	mu         sync.Mutex
	now        func() time.Time
	newID      func() string
}

// NewSyncService creates a SyncService. lookback is the width of the
// analytics date range ending today.
func NewSyncService(reconciler *Reconciler, runs driven.SyncRunStore, interval, lookback time.Duration) *SyncService {
	return &SyncService{
		reconciler: reconciler,
		runs:       runs,
		interval:   interval,
		lookback:   lookback,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Start runs an immediate sync, then one per interval, until ctx is
// canceled. A failed run is logged and recorded; it never stops the loop.
func (s *SyncService) Start(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil {
				slog.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// RunNow performs one sync run and returns its finalized audit record. The
// outcome of the reconciliation is carried in the record's status; the error
// is non-nil only when the audit trail itself could not be written.
func (s *SyncService) RunNow(ctx context.Context) (model.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	run := model.SyncRun{
		ID:         s.newID(),
		StartedAt:  started,
		RangeStart: started.Add(-s.lookback).Format(dateLayout),
		RangeEnd:   started.Format(dateLayout),
		Status:     model.SyncStatusRunning,
	}

	if err := s.runs.Start(ctx, run); err != nil {
		return run, fmt.Errorf("record sync run start: %w", err)
	}

	slog.Info("sync started", "run_id", run.ID, "range_start", run.RangeStart, "range_end", run.RangeEnd)

	counts, err := s.reconcile(ctx, run.RangeStart, run.RangeEnd)
	run.Counts = counts

	switch {
	case err == nil:
		run.Status = model.SyncStatusSuccess
	case errors.Is(err, driven.ErrNoValidToken):
		run.Status = model.SyncStatusSkippedNoToken
		run.Counts = model.SyncCounts{}
		run.Error = err.Error()
	default:
		run.Status = model.SyncStatusError
		run.Error = err.Error()
	}

	finished := s.now()
	run.FinishedAt = &finished

	// The terminal transition is written even if ctx was canceled mid-run,
	// so shutdown does not leave a run stuck in running.
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		return run, fmt.Errorf("record sync run finish: %w", err)
	}

	logRun(run, err, finished.Sub(started))
	return run, nil
}

// reconcile converts a panic in the reconciliation into an error so one bad
// run cannot take the scheduler down.
func (s *SyncService) reconcile(ctx context.Context, start, end string) (counts model.SyncCounts, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("sync panicked: %v", v)
		}
	}()
	return s.reconciler.Reconcile(ctx, start, end)
}

func logRun(run model.SyncRun, err error, took time.Duration) {
	attrs := []any{
		"run_id", run.ID,
		"status", string(run.Status),
		"emails_total", run.Counts.EmailsTotal,
		"emails_useful", run.Counts.EmailsUseful,
		"analytics_total", run.Counts.AnalyticsTotal,
		"upserts_total", run.Counts.UpsertsTotal,
		"duration", took.Round(time.Millisecond),
	}

	switch run.Status {
	case model.SyncStatusSuccess:
		slog.Info("sync complete", attrs...)
	case model.SyncStatusSkippedNoToken:
		slog.Warn("sync skipped: provider not authorized", attrs...)
	default:
		var httpErr *driven.UpstreamHTTPError
		if errors.As(err, &httpErr) {
			attrs = append(attrs, "upstream_status", httpErr.Status, "upstream_body", httpErr.Body)
		}
		slog.Error("sync failed", append(attrs, "error", err)...)
	}
}

// SweepAbandoned finalizes runs left in running for longer than staleAfter,
// typically by a crash, as errors.
func (s *SyncService) SweepAbandoned(ctx context.Context, staleAfter time.Duration) (int64, error) {
	n, err := s.runs.MarkAbandoned(ctx, s.now().Add(-staleAfter), abandonedRunMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Warn("abandoned sync runs marked as error", "count", n, "stale_after", staleAfter)
	}
	return n, nil
}
