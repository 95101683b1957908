package repository

import (
	"context"
	"net/http"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// IPlatformPublisher posts content to one platform and returns the public URL of the post.
// Failures are *model.ProviderError or wrap model.ErrTimeout.
type IPlatformPublisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, creds model.PlatformCredentials, content model.PublishContent) (string, error)
}

// IProfileFetcher resolves the authorized account through an already-authenticated client.
type IProfileFetcher interface {
	FetchProfile(ctx context.Context, platform model.Platform, client *http.Client) (*model.Profile, error)
}
