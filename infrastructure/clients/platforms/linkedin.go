package platforms

import (
	"context"
	"net/http"
	"strings"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

const linkedInAPIBase = "https://api.linkedin.com"

// LinkedIn shares a member post through the UGC posts API.
type LinkedIn struct {
	client
	baseURL string
}

func NewLinkedIn(baseURL string, hc *http.Client) *LinkedIn {
	if baseURL == "" {
		baseURL = linkedInAPIBase
	}
	return &LinkedIn{client: newClient(model.PlatformLinkedIn, hc), baseURL: baseURL}
}

func (l *LinkedIn) Platform() model.Platform { return model.PlatformLinkedIn }

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcPost struct {
	Author          string                     `json:"author"`
	LifecycleState  string                     `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility      map[string]string          `json:"visibility"`
}

func (l *LinkedIn) Publish(ctx context.Context, creds model.PlatformCredentials, content model.PublishContent) (string, error) {
	if creds.PlatformUserID == "" {
		return "", model.NewProviderError(model.PlatformLinkedIn, http.StatusUnauthorized, "member id unknown, reconnect required")
	}
	share := ugcShareContent{
		ShareCommentary:    ugcText{Text: strings.TrimSpace(content.Text)},
		ShareMediaCategory: "NONE",
	}
	if content.LinkURL != "" {
		share.ShareMediaCategory = "ARTICLE"
		share.Media = []ugcMedia{{Status: "READY", OriginalURL: content.LinkURL}}
	}
	post := ugcPost{
		Author:          "urn:li:person:" + creds.PlatformUserID,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{"com.linkedin.ugc.ShareContent": share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.AccessToken)
	header.Set("X-Restli-Protocol-Version", "2.0.0")
	var resp struct {
		ID string `json:"id"`
	}
	respHeader, err := l.postJSON(ctx, nil, joinURL(l.baseURL, "v2", "ugcPosts"), header, post, &resp)
	if err != nil {
		return "", err
	}
	id := resp.ID
	if id == "" {
		id = respHeader.Get("X-Restli-Id")
	}
	if id == "" {
		return "", nil
	}
	return "https://www.linkedin.com/feed/update/" + id, nil
}
