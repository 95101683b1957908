package repository

import (
	"context"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// IAppCredential stores one OAuth app credential per platform.
type IAppCredential interface {
	Get(ctx context.Context, platform model.Platform) (*model.OAuthAppCredential, error)
	Upsert(ctx context.Context, cred *model.OAuthAppCredential) error
	Delete(ctx context.Context, platform model.Platform) error
	List(ctx context.Context) ([]model.OAuthAppCredential, error)
}
