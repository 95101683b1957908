package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
)

// ContentGenerationRunner writes one draft per requested platform.
type ContentGenerationRunner struct {
	gen repository.IContentGenerator
}

func NewContentGenerationRunner(gen repository.IContentGenerator) *ContentGenerationRunner {
	return &ContentGenerationRunner{gen: gen}
}

func decodeContentInput(raw json.RawMessage) (model.ContentGenerationInput, error) {
	var in model.ContentGenerationInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.ArticleTitle) == "" && strings.TrimSpace(in.ArticleSummary) == "" {
		return in, fmt.Errorf("%w: article_title or article_summary is required", model.ErrInvalidInput)
	}
	if len(in.Platforms) == 0 {
		in.Platforms = model.Platforms
	}
	for _, p := range in.Platforms {
		if !p.Valid() {
			return in, model.WithPlatform(p, model.ErrUnsupportedPlatform)
		}
	}
	return in, nil
}

func (r *ContentGenerationRunner) Validate(input json.RawMessage) error {
	_, err := decodeContentInput(input)
	return err
}

func (r *ContentGenerationRunner) Run(ctx context.Context, input json.RawMessage, report ProgressFunc) (interface{}, error) {
	in, err := decodeContentInput(input)
	if err != nil {
		return nil, err
	}
	result := model.ContentGenerationResult{Drafts: make(map[model.Platform]string, len(in.Platforms))}
	for i, p := range in.Platforms {
		report(5+i*90/len(in.Platforms), fmt.Sprintf("Writing %s post", p.DisplayName()))
		draft, err := r.gen.GenerateDraft(ctx, p, in)
		if err != nil {
			return nil, fmt.Errorf("%s draft: %w", p.DisplayName(), err)
		}
		result.Drafts[p] = draft
	}
	report(99, "Finalizing")
	return result, nil
}

// ImageGenerationRunner produces a single image for a prompt.
type ImageGenerationRunner struct {
	gen repository.IImageGenerator
}

func NewImageGenerationRunner(gen repository.IImageGenerator) *ImageGenerationRunner {
	return &ImageGenerationRunner{gen: gen}
}

func decodeImageInput(raw json.RawMessage) (model.ImageGenerationInput, error) {
	var in model.ImageGenerationInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return in, fmt.Errorf("%w: prompt is required", model.ErrInvalidInput)
	}
	return in, nil
}

func (r *ImageGenerationRunner) Validate(input json.RawMessage) error {
	_, err := decodeImageInput(input)
	return err
}

func (r *ImageGenerationRunner) Run(ctx context.Context, input json.RawMessage, report ProgressFunc) (interface{}, error) {
	in, err := decodeImageInput(input)
	if err != nil {
		return nil, err
	}
	report(10, "Generating image")
	res, err := r.gen.GenerateImage(ctx, in)
	if err != nil {
		return nil, err
	}
	report(95, "Finalizing")
	return res, nil
}
