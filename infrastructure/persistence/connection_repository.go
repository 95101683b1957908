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

const connectionColumns = `id, user_id, platform, status, access_token, refresh_token, token_secret, token_expires_at,
	platform_user_id, platform_username, last_error, version, created_at, updated_at`

// ConnectionRepository persists social connections for SQLite and PostgreSQL.
type ConnectionRepository struct {
	db *sqlx.DB
}

func NewConnectionRepository(db *sqlx.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func utcConnection(c *model.SocialConnection) {
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if c.TokenExpiresAt != nil {
		t := c.TokenExpiresAt.UTC()
		c.TokenExpiresAt = &t
	}
}

func expiresAt(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r *ConnectionRepository) Get(ctx context.Context, userID string, platform model.Platform) (*model.SocialConnection, error) {
	var c model.SocialConnection
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+connectionColumns+` FROM social_connections WHERE user_id = ? AND platform = ?`),
		userID, string(platform))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	utcConnection(&c)
	return &c, nil
}

func (r *ConnectionRepository) Insert(ctx context.Context, c *model.SocialConnection) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt, c.Version = now, now, 1
	err := r.db.GetContext(ctx, &c.ID, r.db.Rebind(`INSERT INTO social_connections (user_id, platform, status, access_token, refresh_token, token_secret,
		token_expires_at, platform_user_id, platform_username, last_error, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO NOTHING
		RETURNING id`),
		c.UserID, string(c.Platform), string(c.Status), c.AccessToken, c.RefreshToken, c.TokenSecret,
		expiresAt(c.TokenExpiresAt), c.PlatformUserID, c.PlatformUsername, c.LastError, c.Version, c.CreatedAt, c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) CompareAndSwap(ctx context.Context, c *model.SocialConnection, expectedVersion int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE social_connections SET status = ?, access_token = ?, refresh_token = ?, token_secret = ?,
		token_expires_at = ?, platform_user_id = ?, platform_username = ?, last_error = ?, version = ?, updated_at = ?
		WHERE user_id = ? AND platform = ? AND version = ?`),
		string(c.Status), c.AccessToken, c.RefreshToken, c.TokenSecret, expiresAt(c.TokenExpiresAt),
		c.PlatformUserID, c.PlatformUsername, c.LastError, expectedVersion+1, now,
		c.UserID, string(c.Platform), expectedVersion)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if n == 0 {
		return model.ErrConflict
	}
	c.Version = expectedVersion + 1
	c.UpdatedAt = now
	return nil
}

func (r *ConnectionRepository) List(ctx context.Context, userID string) ([]model.SocialConnection, error) {
	return r.list(ctx, `SELECT `+connectionColumns+` FROM social_connections WHERE user_id = ? ORDER BY platform`, userID)
}

func (r *ConnectionRepository) ListExpiring(ctx context.Context, t time.Time) ([]model.SocialConnection, error) {
	return r.list(ctx, `SELECT `+connectionColumns+` FROM social_connections
		WHERE status = ? AND token_expires_at IS NOT NULL AND token_expires_at <= ?`, string(model.StatusConnected), t.UTC())
}

func (r *ConnectionRepository) ListStalePending(ctx context.Context, t time.Time) ([]model.SocialConnection, error) {
	return r.list(ctx, `SELECT `+connectionColumns+` FROM social_connections
		WHERE status = ? AND updated_at < ?`, string(model.StatusAuthorizationPending), t.UTC())
}

func (r *ConnectionRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.SocialConnection, error) {
	var out []model.SocialConnection
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	for i := range out {
		utcConnection(&out[i])
	}
	return out, nil
}
