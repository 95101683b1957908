package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
)

// TransactionStore keeps OAuth transactions as JSON in a TTL store. Each user has at most one
// open transaction per platform; saving a new one discards the previous.
type TransactionStore struct {
	kv  repository.IKeyValueStore
	now func() time.Time
}

func NewTransactionStore(kv repository.IKeyValueStore) *TransactionStore {
	return &TransactionStore{kv: kv, now: time.Now}
}

func txKey(platform model.Platform, key string) string {
	return fmt.Sprintf("oauth:tx:%s:%s", platform, key)
}

func openKey(userID string, platform model.Platform) string {
	return fmt.Sprintf("oauth:open:%s:%s", platform, userID)
}

func (s *TransactionStore) Save(ctx context.Context, tx *model.OAuthTransaction) error {
	ttl := tx.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: transaction already expired", model.ErrInvalidInput)
	}
	if _, err := s.Discard(ctx, tx.UserID, tx.Platform); err != nil {
		return err
	}
	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	k := txKey(tx.Platform, tx.Key())
	if err := s.kv.Put(ctx, k, body, ttl); err != nil {
		return fmt.Errorf("save oauth transaction: %w", err)
	}
	if err := s.kv.Put(ctx, openKey(tx.UserID, tx.Platform), []byte(k), ttl); err != nil {
		return fmt.Errorf("index oauth transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) Take(ctx context.Context, platform model.Platform, key string) (*model.OAuthTransaction, error) {
	if key == "" {
		return nil, model.ErrInvalidState
	}
	body, found, err := s.kv.Take(ctx, txKey(platform, key))
	if err != nil {
		return nil, fmt.Errorf("take oauth transaction: %w", err)
	}
	if !found {
		return nil, model.ErrInvalidState
	}
	var tx model.OAuthTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("%w: corrupt transaction", model.ErrInvalidState)
	}
	if tx.Platform != platform || tx.Key() != key || tx.Expired(s.now()) {
		return nil, model.ErrInvalidState
	}
	return &tx, nil
}

func (s *TransactionStore) Discard(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	ref, found, err := s.kv.Take(ctx, openKey(userID, platform))
	if err != nil {
		return false, fmt.Errorf("discard oauth transaction: %w", err)
	}
	if !found {
		return false, nil
	}
	_, existed, err := s.kv.Take(ctx, string(ref))
	if err != nil {
		return false, fmt.Errorf("discard oauth transaction: %w", err)
	}
	return existed, nil
}

// RateLimiter is a fixed-window counter over the TTL store.
type RateLimiter struct {
	kv     repository.IKeyValueStore
	limit  int
	window time.Duration
}

func NewRateLimiter(kv repository.IKeyValueStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{kv: kv, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
// A non-positive limit disables limiting.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	n, err := r.kv.Incr(ctx, "ratelimit:"+key, r.window)
	if err != nil {
		return false, err
	}
	return n <= int64(r.limit), nil
}
