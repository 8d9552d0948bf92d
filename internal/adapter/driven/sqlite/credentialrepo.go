package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// credentialID is the fixed primary key of the singleton credential row.
const credentialID = 1

// CredentialRepo is the SQLite implementation of the CredentialStore port.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// EnsureSchema creates the credential table if absent and adds the
// expires_at and updated_at columns to tables written by older deployments,
// backfilling 0 and the current time respectively.
func (r *CredentialRepo) EnsureSchema(ctx context.Context) error {
	const create = `CREATE TABLE IF NOT EXISTS rd_tokens (
		id            INTEGER PRIMARY KEY DEFAULT 1,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at    INTEGER NOT NULL,
		updated_at    TEXT NOT NULL
	)`
	if _, err := r.db.Writer.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create credential table: %w", err)
	}

	columns, err := r.columns(ctx)
	if err != nil {
		return err
	}

	if !columns["expires_at"] {
		if _, err := r.db.Writer.ExecContext(ctx, `ALTER TABLE rd_tokens ADD COLUMN expires_at INTEGER`); err != nil {
			return fmt.Errorf("add expires_at column: %w", err)
		}
		if _, err := r.db.Writer.ExecContext(ctx, `UPDATE rd_tokens SET expires_at = 0 WHERE expires_at IS NULL`); err != nil {
			return fmt.Errorf("backfill expires_at: %w", err)
		}
	}

	if !columns["updated_at"] {
		if _, err := r.db.Writer.ExecContext(ctx, `ALTER TABLE rd_tokens ADD COLUMN updated_at TEXT`); err != nil {
			return fmt.Errorf("add updated_at column: %w", err)
		}
		const backfill = `UPDATE rd_tokens SET updated_at = ? WHERE updated_at IS NULL OR updated_at = ''`
		if _, err := r.db.Writer.ExecContext(ctx, backfill, formatTime(time.Now())); err != nil {
			return fmt.Errorf("backfill updated_at: %w", err)
		}
	}

	return nil
}

func (r *CredentialRepo) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.Writer.QueryContext(ctx, `SELECT name FROM pragma_table_info('rd_tokens')`)
	if err != nil {
		return nil, fmt.Errorf("inspect credential table: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential columns: %w", err)
	}

	return columns, nil
}

// Get retrieves the singleton credential. Returns nil, nil if none exists.
func (r *CredentialRepo) Get(ctx context.Context) (*model.Credential, error) {
	const query = `SELECT access_token, refresh_token, COALESCE(expires_at, 0), COALESCE(updated_at, '')
		FROM rd_tokens WHERE id = ?`

	var cred model.Credential
	var updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, credentialID).
		Scan(&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if updatedAt != "" {
		cred.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse credential updated_at: %w", err)
		}
	}

	return &cred, nil
}

// Save replaces the singleton credential. A zero UpdatedAt is stamped with
// the current time.
func (r *CredentialRepo) Save(ctx context.Context, cred model.Credential) error {
	updatedAt := cred.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	const query = `INSERT OR REPLACE INTO rd_tokens (id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		credentialID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}
