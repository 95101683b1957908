package repository

import (
	"context"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

type IPost interface {
	Create(ctx context.Context, post *model.Post) error
	// Get returns nil, nil when the post does not exist.
	Get(ctx context.Context, postID string) (*model.Post, error)
}

// IPublishRecord keeps the latest outcome per (post, platform, user).
type IPublishRecord interface {
	Upsert(ctx context.Context, rec *model.PublishRecord) error
	ListByPost(ctx context.Context, userID, postID string) ([]model.PublishRecord, error)
}

// IPublishAudit is an append-only trail of publish attempts.
type IPublishAudit interface {
	Append(ctx context.Context, entries []model.PublishAudit) error
	ListByPost(ctx context.Context, postID string, limit int64) ([]model.PublishAudit, error)
}

// IEventPublisher emits domain events to a message bus and returns the broker's message id.
type IEventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}
