package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncRunStore = (*SyncRunRepo)(nil)

// SyncRunRepo is the SQLite implementation of the SyncRunStore port.
type SyncRunRepo struct {
	db *DB
}

// NewSyncRunRepo creates a new SyncRunRepo backed by the given DB.
func NewSyncRunRepo(db *DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// Start inserts the run in the running state. Counts, error and finish
// time are ignored; they are only written by Finish.
func (r *SyncRunRepo) Start(ctx context.Context, run model.SyncRun) error {
	const query = `INSERT INTO sync_runs (id, started_at, range_start, range_end, status)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID, formatTime(run.StartedAt), run.RangeStart, run.RangeEnd, string(model.SyncStatusRunning))
	if err != nil {
		return fmt.Errorf("start sync run %s: %w", run.ID, err)
	}
	return nil
}

// Finish writes the terminal state of a run. The update only applies to a
// row still in the running state, so a run transitions out of running once.
func (r *SyncRunRepo) Finish(ctx context.Context, run model.SyncRun) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("finish sync run %s: status %q is not terminal", run.ID, run.Status)
	}

	finishedAt := time.Now()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	const query = `UPDATE sync_runs SET
		finished_at = ?, status = ?,
		emails_total = ?, emails_useful = ?, analytics_total = ?, upserts_total = ?,
		error = ?
	WHERE id = ? AND status = 'running'`

	result, err := r.db.Writer.ExecContext(ctx, query,
		formatTime(finishedAt), string(run.Status),
		run.Counts.EmailsTotal, run.Counts.EmailsUseful, run.Counts.AnalyticsTotal, run.Counts.UpsertsTotal,
		run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish sync run %s: %w", run.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("finish sync run %s: %w", run.ID, driven.ErrRunNotRunning)
	}

	return nil
}

// ListRecent returns up to limit runs ordered by start time, newest first.
func (r *SyncRunRepo) ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error) {
	const query = `SELECT id, started_at, finished_at, range_start, range_end, status,
		emails_total, emails_useful, analytics_total, upserts_total, error
	FROM sync_runs
	ORDER BY started_at DESC, id
	LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}

	return runs, nil
}

// MarkAbandoned finalizes runs stuck in running since before cutoff.
func (r *SyncRunRepo) MarkAbandoned(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	const query = `UPDATE sync_runs SET status = 'error', finished_at = ?, error = ?
		WHERE status = 'running' AND started_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), message, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("mark abandoned sync runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

func scanSyncRun(s scanner) (*model.SyncRun, error) {
	var run model.SyncRun
	var startedAt, status string
	var finishedAt sql.NullString

	err := s.Scan(
		&run.ID, &startedAt, &finishedAt, &run.RangeStart, &run.RangeEnd, &status,
		&run.Counts.EmailsTotal, &run.Counts.EmailsUseful, &run.Counts.AnalyticsTotal, &run.Counts.UpsertsTotal,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.SyncStatus(status)
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseNullTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	return &run, nil
}
