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
var _ driven.FunnelStore = (*FunnelRepo)(nil)

// FunnelRepo is the SQLite implementation of the FunnelStore port. Events are
// append-only.
type FunnelRepo struct {
	db *DB
}

// NewFunnelRepo creates a new FunnelRepo backed by the given DB.
func NewFunnelRepo(db *DB) *FunnelRepo {
	return &FunnelRepo{db: db}
}

// Record appends a funnel event.
func (r *FunnelRepo) Record(ctx context.Context, ev model.FunnelEvent) error {
	const query = `INSERT INTO funnel_events (kind, event, src, user_agent, created_at) VALUES (?, ?, ?, ?, ?)`

	src := ev.Source
	if src == "" {
		src = model.DefaultFunnelSource
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query, string(ev.Kind), ev.Event, src, ev.UserAgent, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("record %s event %q: %w", ev.Kind, ev.Event, err)
	}
	return nil
}

// Summaries aggregates page views and leads per event key, ordered by key.
func (r *FunnelRepo) Summaries(ctx context.Context) ([]model.FunnelSummary, error) {
	const query = `SELECT
		event,
		SUM(CASE WHEN kind = 'pageview' THEN 1 ELSE 0 END),
		SUM(CASE WHEN kind = 'lead' THEN 1 ELSE 0 END),
		MAX(CASE WHEN kind = 'pageview' THEN created_at END)
	FROM funnel_events
	GROUP BY event
	ORDER BY event`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("summarize funnel events: %w", err)
	}
	defer rows.Close()

	var summaries []model.FunnelSummary
	for rows.Next() {
		var s model.FunnelSummary
		var lastView sql.NullString
		if err := rows.Scan(&s.Event, &s.PageViews, &s.Leads, &lastView); err != nil {
			return nil, fmt.Errorf("scan funnel summary: %w", err)
		}
		if s.LastView, err = parseNullTime(lastView); err != nil {
			return nil, fmt.Errorf("parse last view for %q: %w", s.Event, err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funnel summaries: %w", err)
	}

	return summaries, nil
}

// ListLeads returns up to limit lead events, newest first.
func (r *FunnelRepo) ListLeads(ctx context.Context, limit int) ([]model.FunnelEvent, error) {
	const query = `SELECT id, kind, event, src, user_agent, created_at
	FROM funnel_events
	WHERE kind = 'lead'
	ORDER BY created_at DESC, id DESC
	LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []model.FunnelEvent
	for rows.Next() {
		var ev model.FunnelEvent
		var kind, createdAt string
		if err := rows.Scan(&ev.ID, &kind, &ev.Event, &ev.Source, &ev.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		ev.Kind = model.FunnelKind(kind)
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse lead created_at: %w", err)
		}
		leads = append(leads, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	return leads, nil
}
