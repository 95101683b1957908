package persistence

import (
	"context"
	"fmt"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

func (r *AppCredentialRepository) upsertMSSQL(ctx context.Context, c *model.OAuthAppCredential, scopes string) error {
	q := `MERGE dbo.[oauth_app_credentials] WITH (HOLDLOCK) AS target
USING (VALUES (@p1)) AS src(platform)
ON target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
  oauth_version = @p2, client_id = @p3, client_secret = @p4, callback_url = @p5,
  scopes = @p6, updated_at = @p7, updated_by = @p8
WHEN NOT MATCHED THEN
  INSERT (platform, oauth_version, client_id, client_secret, callback_url, scopes, updated_at, updated_by)
  VALUES (src.platform, @p2, @p3, @p4, @p5, @p6, @p7, @p8);`
	if _, err := r.db.ExecContext(ctx, q, string(c.Platform), string(c.OAuthVersion), c.ClientID, c.ClientSecret,
		c.CallbackURL, scopes, c.UpdatedAt, c.UpdatedBy); err != nil {
		return fmt.Errorf("upsert app credential (mssql): %w", err)
	}
	return nil
}
