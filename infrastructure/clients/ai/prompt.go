package ai

import (
	"fmt"
	"strings"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

var platformStyle = map[model.Platform]string{
	model.PlatformTwitter:   "a single tweet under 260 characters, no hashtag spam, at most two hashtags",
	model.PlatformLinkedIn:  "a LinkedIn post of 3 short paragraphs with a professional tone and a closing question",
	model.PlatformThreads:   "a conversational Threads post under 450 characters",
	model.PlatformInstagram: "an Instagram caption with a hook line, 2-3 sentences and up to five hashtags",
}

func systemPrompt(platform model.Platform) string {
	style, ok := platformStyle[platform]
	if !ok {
		style = "a short social media post"
	}
	return fmt.Sprintf("You write social media posts about news articles. Write %s. Reply with the post text only.", style)
}

func userPrompt(in model.ContentGenerationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(in.ArticleTitle))
	if in.ArticleSummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", strings.TrimSpace(in.ArticleSummary))
	}
	if in.ArticleURL != "" {
		fmt.Fprintf(&b, "Link: %s\n", in.ArticleURL)
	}
	if in.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", in.Tone)
	}
	return b.String()
}
