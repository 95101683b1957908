package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// PublishAuditMongo appends publish attempts to a MongoDB collection.
type PublishAuditMongo struct {
	collection *mongo.Collection
}

func NewPublishAuditMongo(client *mongo.Client, database string) *PublishAuditMongo {
	return &PublishAuditMongo{collection: client.Database(database).Collection("publish_audits")}
}

func (r *PublishAuditMongo) Append(ctx context.Context, entries []model.PublishAudit) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		docs = append(docs, e)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("append publish audit (mongo): %w", err)
	}
	return nil
}

func (r *PublishAuditMongo) ListByPost(ctx context.Context, postID string, limit int64) ([]model.PublishAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list publish audit (mongo): %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}()
	var out []model.PublishAudit
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
