package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS oauth_app_credentials (
	platform TEXT PRIMARY KEY,
	oauth_version TEXT NOT NULL,
	client_id TEXT NOT NULL,
	client_secret TEXT NOT NULL,
	callback_url TEXT NOT NULL DEFAULT '',
	scopes TEXT NOT NULL DEFAULT '[]',
	updated_at {{TIME}} NOT NULL,
	updated_by TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS social_connections (
	id {{SERIAL}},
	user_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	status TEXT NOT NULL,
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	token_secret TEXT NOT NULL DEFAULT '',
	token_expires_at {{TIME}} NULL,
	platform_user_id TEXT NOT NULL DEFAULT '',
	platform_username TEXT NOT NULL DEFAULT '',
	last_error TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 1,
	created_at {{TIME}} NOT NULL,
	updated_at {{TIME}} NOT NULL,
	UNIQUE (user_id, platform)
);
CREATE INDEX IF NOT EXISTS ix_social_connections_status ON social_connections(status, updated_at);
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	link_url TEXT NOT NULL DEFAULT '',
	created_at {{TIME}} NOT NULL,
	updated_at {{TIME}} NOT NULL
);
CREATE TABLE IF NOT EXISTS publish_records (
	id {{SERIAL}},
	post_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	user_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	external_url TEXT NULL,
	error_message TEXT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	created_at {{TIME}} NOT NULL,
	updated_at {{TIME}} NOT NULL,
	UNIQUE (post_id, platform, user_id)
);
CREATE TABLE IF NOT EXISTS publish_audits (
	id {{SERIAL}},
	post_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	user_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	external_url TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at {{TIME}} NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_publish_audits_post ON publish_audits(post_id, created_at);
`

// EnsureSchema creates missing tables. Safe to call at every startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB, d Dialect) error {
	if d == DialectMSSQL {
		return EnsureSchemaMSSQL(ctx, db)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	serial, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	if d == DialectPostgres {
		serial, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	ddl := strings.NewReplacer("{{SERIAL}}", serial, "{{TIME}}", ts).Replace(schemaTemplate)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema (%s): %w", d, err)
		}
	}
	return ensureColumns(ctx, db, d)
}

// ensureColumns adds columns introduced after a table was first created.
func ensureColumns(ctx context.Context, db *sqlx.DB, d Dialect) error {
	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"social_connections", "token_secret", "ALTER TABLE social_connections ADD COLUMN token_secret TEXT NOT NULL DEFAULT ''"},
		{"publish_audits", "reason", "ALTER TABLE publish_audits ADD COLUMN reason TEXT NOT NULL DEFAULT ''"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, d, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sqlx.DB, d Dialect, table, column string) (bool, error) {
	var q string
	switch d {
	case DialectSQLite:
		q = `SELECT 1 FROM pragma_table_info(?) WHERE name = ?`
	case DialectMSSQL:
		q = `SELECT 1 FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = ? AND COLUMN_NAME = ?`
	default:
		q = `SELECT 1 FROM information_schema.columns WHERE table_name = ? AND column_name = ?`
	}
	var one int
	err := db.GetContext(ctx, &one, db.Rebind(q), table, column)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
