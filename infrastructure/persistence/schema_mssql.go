package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var mssqlTables = []struct {
	name string
	ddl  string
}{
	{"oauth_app_credentials", `CREATE TABLE dbo.[oauth_app_credentials] (
        platform NVARCHAR(32) NOT NULL PRIMARY KEY,
        oauth_version NVARCHAR(8) NOT NULL,
        client_id NVARCHAR(MAX) NOT NULL,
        client_secret NVARCHAR(MAX) NOT NULL,
        callback_url NVARCHAR(1024) NOT NULL DEFAULT '',
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '[]',
        updated_at DATETIME2 NOT NULL,
        updated_by NVARCHAR(128) NOT NULL DEFAULT ''
    )`},
	{"social_connections", `CREATE TABLE dbo.[social_connections] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        status NVARCHAR(32) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        token_secret NVARCHAR(MAX) NOT NULL DEFAULT '',
        token_expires_at DATETIME2 NULL,
        platform_user_id NVARCHAR(128) NOT NULL DEFAULT '',
        platform_username NVARCHAR(255) NOT NULL DEFAULT '',
        last_error NVARCHAR(1024) NOT NULL DEFAULT '',
        version BIGINT NOT NULL DEFAULT 1,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_social_connections_user_platform ON dbo.[social_connections](user_id, platform);`},
	{"posts", `CREATE TABLE dbo.[posts] (
        id NVARCHAR(64) NOT NULL PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        content NVARCHAR(MAX) NOT NULL,
        image_url NVARCHAR(2048) NOT NULL DEFAULT '',
        link_url NVARCHAR(2048) NOT NULL DEFAULT '',
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    )`},
	{"publish_records", `CREATE TABLE dbo.[publish_records] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        post_id NVARCHAR(64) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        outcome NVARCHAR(16) NOT NULL,
        external_url NVARCHAR(2048) NULL,
        error_message NVARCHAR(MAX) NULL,
        attempt_count INT NOT NULL DEFAULT 0,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_publish_records_post_platform_user ON dbo.[publish_records](post_id, platform, user_id);`},
	{"publish_audits", `CREATE TABLE dbo.[publish_audits] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        post_id NVARCHAR(64) NOT NULL,
        platform NVARCHAR(32) NOT NULL,
        user_id NVARCHAR(128) NOT NULL,
        outcome NVARCHAR(16) NOT NULL,
        reason NVARCHAR(64) NOT NULL DEFAULT '',
        error_message NVARCHAR(MAX) NOT NULL DEFAULT '',
        external_url NVARCHAR(2048) NOT NULL DEFAULT '',
        attempts INT NOT NULL DEFAULT 0,
        created_at DATETIME2 NOT NULL
    )`},
}

// EnsureSchemaMSSQL creates the tables for SQL Server if they do not exist.
func EnsureSchemaMSSQL(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for _, t := range mssqlTables {
		ddl := fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.%s') AND type in (N'U'))
BEGIN
    %s
END`, t.name, t.ddl)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s (mssql): %w", t.name, err)
		}
	}
	return ensureColumns(ctx, db, DialectMSSQL)
}
