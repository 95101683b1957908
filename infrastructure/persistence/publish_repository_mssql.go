package persistence

import (
	"context"
	"fmt"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

func (r *PublishRecordRepository) upsertMSSQL(ctx context.Context, rec *model.PublishRecord) error {
	q := `MERGE dbo.[publish_records] WITH (HOLDLOCK) AS target
USING (VALUES (@p1, @p2, @p3)) AS src(post_id, platform, user_id)
ON target.post_id = src.post_id AND target.platform = src.platform AND target.user_id = src.user_id
WHEN MATCHED THEN UPDATE SET
  outcome = @p4,
  external_url = COALESCE(@p5, target.external_url),
  error_message = @p6,
  attempt_count = target.attempt_count + @p7,
  updated_at = @p9
WHEN NOT MATCHED THEN
  INSERT (post_id, platform, user_id, outcome, external_url, error_message, attempt_count, created_at, updated_at)
  VALUES (src.post_id, src.platform, src.user_id, @p4, @p5, @p6, @p7, @p8, @p9);`
	if _, err := r.db.ExecContext(ctx, q, rec.PostID, string(rec.Platform), rec.UserID, string(rec.Outcome),
		rec.ExternalURL, rec.ErrorMessage, rec.AttemptCount, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("upsert publish record (mssql): %w", err)
	}
	return nil
}
