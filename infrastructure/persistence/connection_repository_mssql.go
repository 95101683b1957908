package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// ConnectionRepositoryMSSQL implements connection persistence for SQL Server/Azure SQL.
// Reads and compare-and-swap updates are shared with ConnectionRepository; only the
// insert-if-absent needs MERGE.
type ConnectionRepositoryMSSQL struct {
	*ConnectionRepository
}

func NewConnectionRepositoryMSSQL(db *sqlx.DB) *ConnectionRepositoryMSSQL {
	return &ConnectionRepositoryMSSQL{ConnectionRepository: NewConnectionRepository(db)}
}

func (r *ConnectionRepositoryMSSQL) Insert(ctx context.Context, c *model.SocialConnection) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt, c.Version = now, now, 1
	q := `MERGE dbo.[social_connections] WITH (HOLDLOCK) AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN NOT MATCHED THEN
  INSERT (user_id, platform, status, access_token, refresh_token, token_secret, token_expires_at,
          platform_user_id, platform_username, last_error, version, created_at, updated_at)
  VALUES (src.user_id, src.platform, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p12)
OUTPUT inserted.id;`
	err := r.db.GetContext(ctx, &c.ID, q, c.UserID, string(c.Platform), string(c.Status), c.AccessToken, c.RefreshToken,
		c.TokenSecret, expiresAt(c.TokenExpiresAt), c.PlatformUserID, c.PlatformUsername, c.LastError, c.Version, now)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert connection (mssql): %w", err)
	}
	return nil
}
