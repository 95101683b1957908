package repository

import (
	"context"
	"time"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// IConnection persists connections. Updates are compare-and-swap on Version.
type IConnection interface {
	// Get returns nil, nil when no row exists.
	Get(ctx context.Context, userID string, platform model.Platform) (*model.SocialConnection, error)
	// Insert creates the row with Version 1. Returns model.ErrConflict if it already exists.
	Insert(ctx context.Context, conn *model.SocialConnection) error
	// CompareAndSwap writes conn when the stored version equals expectedVersion and bumps the
	// version. Returns model.ErrConflict when another writer got there first.
	CompareAndSwap(ctx context.Context, conn *model.SocialConnection, expectedVersion int64) error
	List(ctx context.Context, userID string) ([]model.SocialConnection, error)
	// ListExpiring returns connected rows whose token expiry is at or before t.
	ListExpiring(ctx context.Context, t time.Time) ([]model.SocialConnection, error)
	// ListStalePending returns authorization_pending rows last touched before t.
	ListStalePending(ctx context.Context, t time.Time) ([]model.SocialConnection, error)
}
