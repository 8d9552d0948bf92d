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
var _ driven.CampaignStore = (*CampaignRepo)(nil)

// CampaignRepo is the SQLite implementation of the CampaignStore port.
type CampaignRepo struct {
	db *DB
}

// NewCampaignRepo creates a new CampaignRepo backed by the given DB.
func NewCampaignRepo(db *DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

// Upsert inserts the campaign or replaces every column of the existing row
// with the same campaign_id. Rows absent from a sync are left untouched.
func (r *CampaignRepo) Upsert(ctx context.Context, c model.Campaign) error {
	const query = `INSERT OR REPLACE INTO campaign_cache (
		campaign_id, campaign_name, sent_at,
		sent, delivered, opened, clicked, bounced,
		open_rate, click_rate, status, type, lead_count,
		upstream_created_at, upstream_updated_at, cached_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	cachedAt := c.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		c.ID, c.Name, formatNullTime(c.SentAt),
		c.Sent, c.Delivered, c.Opened, c.Clicked, c.Bounced,
		c.OpenRate, c.ClickRate, c.Status, c.Type, c.LeadCount,
		formatNullTime(c.CreatedAt), formatNullTime(c.UpdatedAt), formatTime(cachedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert campaign %s: %w", c.ID, err)
	}
	return nil
}

// ListAll returns every cached campaign, most recently sent first.
// Campaigns without a send timestamp sort last.
func (r *CampaignRepo) ListAll(ctx context.Context) ([]model.Campaign, error) {
	const query = `SELECT
		campaign_id, campaign_name, sent_at,
		sent, delivered, opened, clicked, bounced,
		open_rate, click_rate, status, type, lead_count,
		upstream_created_at, upstream_updated_at, cached_at
	FROM campaign_cache
	ORDER BY sent_at IS NULL, sent_at DESC, campaign_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}

	return campaigns, nil
}

// Freshness reports how many campaigns are cached and when the newest row
// was written.
func (r *CampaignRepo) Freshness(ctx context.Context) (model.CacheFreshness, error) {
	const query = `SELECT COUNT(*), MAX(cached_at) FROM campaign_cache`

	var f model.CacheFreshness
	var last sql.NullString
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&f.Campaigns, &last); err != nil {
		return model.CacheFreshness{}, fmt.Errorf("campaign cache freshness: %w", err)
	}

	lastCachedAt, err := parseNullTime(last)
	if err != nil {
		return model.CacheFreshness{}, fmt.Errorf("parse cached_at: %w", err)
	}
	f.LastCachedAt = lastCachedAt

	return f, nil
}

func scanCampaign(s scanner) (*model.Campaign, error) {
	var c model.Campaign
	var sentAt, createdAt, updatedAt sql.NullString
	var cachedAt string

	err := s.Scan(
		&c.ID, &c.Name, &sentAt,
		&c.Sent, &c.Delivered, &c.Opened, &c.Clicked, &c.Bounced,
		&c.OpenRate, &c.ClickRate, &c.Status, &c.Type, &c.LeadCount,
		&createdAt, &updatedAt, &cachedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.SentAt, err = parseNullTime(sentAt); err != nil {
		return nil, fmt.Errorf("parse sent_at: %w", err)
	}
	if c.CreatedAt, err = parseNullTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse upstream_created_at: %w", err)
	}
	if c.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse upstream_updated_at: %w", err)
	}
	if c.CachedAt, err = parseTime(cachedAt); err != nil {
		return nil, fmt.Errorf("parse cached_at: %w", err)
	}

	return &c, nil
}
