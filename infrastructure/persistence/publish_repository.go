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

// PostRepository is the minimal post store publish resolves post ids against.
type PostRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO posts (id, user_id, content, image_url, link_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`), p.ID, p.UserID, p.Content, p.ImageURL, p.LinkURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, postID string) (*model.Post, error) {
	var p model.Post
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT id, user_id, content, image_url, link_url, created_at, updated_at FROM posts WHERE id = ?`), postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

// PublishRecordRepository keeps the latest outcome per (post, platform, user).
type PublishRecordRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewPublishRecordRepository(db *sqlx.DB, dialect Dialect) *PublishRecordRepository {
	return &PublishRecordRepository{db: db, dialect: dialect}
}

// Upsert accumulates attempt counts. A successful URL is kept when a later attempt fails.
func (r *PublishRecordRepository) Upsert(ctx context.Context, rec *model.PublishRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if r.dialect == DialectMSSQL {
		return r.upsertMSSQL(ctx, rec)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO publish_records (post_id, platform, user_id, outcome, external_url, error_message, attempt_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id, platform, user_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			external_url = COALESCE(EXCLUDED.external_url, publish_records.external_url),
			error_message = EXCLUDED.error_message,
			attempt_count = publish_records.attempt_count + EXCLUDED.attempt_count,
			updated_at = EXCLUDED.updated_at`),
		rec.PostID, string(rec.Platform), rec.UserID, string(rec.Outcome), rec.ExternalURL, rec.ErrorMessage,
		rec.AttemptCount, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert publish record: %w", err)
	}
	return nil
}

func (r *PublishRecordRepository) ListByPost(ctx context.Context, userID, postID string) ([]model.PublishRecord, error) {
	var out []model.PublishRecord
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, post_id, platform, user_id, outcome, external_url, error_message, attempt_count, created_at, updated_at
		FROM publish_records WHERE post_id = ? AND user_id = ? ORDER BY platform`), postID, userID)
	if err != nil {
		return nil, fmt.Errorf("list publish records: %w", err)
	}
	return out, nil
}

// PublishAuditRepository is the relational audit trail, used when MongoDB is not configured.
type PublishAuditRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewPublishAuditRepository(db *sqlx.DB, dialect Dialect) *PublishAuditRepository {
	return &PublishAuditRepository{db: db, dialect: dialect}
}

func (r *PublishAuditRepository) Append(ctx context.Context, entries []model.PublishAudit) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	q := tx.Rebind(`INSERT INTO publish_audits (post_id, platform, user_id, outcome, reason, error_message, external_url, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, q, e.PostID, string(e.Platform), e.UserID, string(e.Outcome), e.Reason,
			e.ErrorMessage, e.ExternalURL, e.Attempts, e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append publish audit: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PublishAuditRepository) ListByPost(ctx context.Context, postID string, limit int64) ([]model.PublishAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT post_id, platform, user_id, outcome, reason, error_message, external_url, attempts, created_at
		FROM publish_audits WHERE post_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	if r.dialect == DialectMSSQL {
		q = `SELECT post_id, platform, user_id, outcome, reason, error_message, external_url, attempts, created_at
		FROM publish_audits WHERE post_id = ? ORDER BY created_at DESC, id DESC OFFSET 0 ROWS FETCH NEXT ? ROWS ONLY`
	}
	var out []model.PublishAudit
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), postID, limit); err != nil {
		return nil, fmt.Errorf("list publish audits: %w", err)
	}
	return out, nil
}
