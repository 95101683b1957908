package repository

import (
	"context"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// IContentGenerator writes a post draft for one platform from an article.
type IContentGenerator interface {
	GenerateDraft(ctx context.Context, platform model.Platform, in model.ContentGenerationInput) (string, error)
}

// IImageGenerator turns a prompt into a hosted image.
type IImageGenerator interface {
	GenerateImage(ctx context.Context, in model.ImageGenerationInput) (*model.ImageGenerationResult, error)
}
