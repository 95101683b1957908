package repository

import (
	"context"
	"time"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// IKeyValueStore is a TTL store with an atomic take. Take returns found=false when the key is
// missing or expired, and a key is returned to at most one caller.
type IKeyValueStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) (value []byte, found bool, err error)
	Delete(ctx context.Context, keys ...string) error
	// Incr increments a counter, starting its TTL window on first use.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ITransactionStore holds in-flight OAuth transactions. Take consumes a transaction exactly
// once and returns model.ErrInvalidState when it is missing, expired or already used.
type ITransactionStore interface {
	Save(ctx context.Context, tx *model.OAuthTransaction) error
	Take(ctx context.Context, platform model.Platform, key string) (*model.OAuthTransaction, error)
	// Discard drops the open transaction of a user on a platform, reporting whether one existed.
	Discard(ctx context.Context, userID string, platform model.Platform) (bool, error)
}
