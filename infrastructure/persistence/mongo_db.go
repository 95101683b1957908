package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
)

// NewMongoDb connects and pings. Returns an error when no host is configured.
func NewMongoDb(ctx context.Context, cfg configuration.Db) (*mongo.Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("mongo host is not configured")
	}
	u := &url.URL{Scheme: "mongodb", Host: cfg.Host}
	if cfg.Port != "" {
		u.Host = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(u.String()).SetConnectTimeout(5 * time.Second))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
