package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// RedisStore keeps OAuth transactions and rate-limit counters in Redis so several
// server instances can share them. Take relies on GETDEL for atomicity.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "ai-news-hub:"}
}

// NewRedisClient connects using the redisClient configuration section and pings once.
func NewRedisClient(ctx context.Context, cfg configuration.RedisClient) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("redis host is not configured")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.GetLogger().WithField("addr", client.Options().Addr).Info("Connected to Redis")
	return client, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.GetDel(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

// Incr counts hits in a fixed window. The key is created with its TTL before the
// increment inside one MULTI/EXEC, so a counter never exists without an expiry.
func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := r.prefix + key
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
