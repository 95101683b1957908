package platforms

import (
	"context"
	"net/http"
	"strings"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

const (
	threadsAPIBase   = "https://graph.threads.net/v1.0"
	instagramAPIBase = "https://graph.instagram.com/v21.0"
)

type containerParams struct {
	MediaType   string `url:"media_type,omitempty"`
	Text        string `url:"text,omitempty"`
	Caption     string `url:"caption,omitempty"`
	ImageURL    string `url:"image_url,omitempty"`
	AccessToken string `url:"access_token"`
}

type publishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

type permalinkParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

type idResponse struct {
	ID string `json:"id"`
}

// MetaPublisher runs the two-step container/publish flow shared by Threads and Instagram.
type MetaPublisher struct {
	client
	baseURL       string
	createPath    string
	publishPath   string
	requiresImage bool
	textField     func(p *containerParams, text string)
}

func (m *MetaPublisher) Platform() model.Platform { return m.platform }

func (m *MetaPublisher) Publish(ctx context.Context, creds model.PlatformCredentials, content model.PublishContent) (string, error) {
	if m.requiresImage && content.ImageURL == "" {
		return "", model.NewProviderError(m.platform, http.StatusBadRequest, "an image is required")
	}
	if creds.PlatformUserID == "" {
		return "", model.NewProviderError(m.platform, http.StatusUnauthorized, "account id unknown, reconnect required")
	}
	text := composeText(content)
	params := containerParams{AccessToken: creds.AccessToken, ImageURL: content.ImageURL}
	m.textField(&params, text)
	if m.platform == model.PlatformThreads {
		params.MediaType = "TEXT"
		if content.ImageURL != "" {
			params.MediaType = "IMAGE"
		}
	}

	var container idResponse
	if err := m.postForm(ctx, joinURL(m.baseURL, creds.PlatformUserID, m.createPath), params, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", &model.ProviderError{Platform: m.platform, Kind: model.ProviderPermanent, Message: "media container id missing"}
	}

	var published idResponse
	if err := m.postForm(ctx, joinURL(m.baseURL, creds.PlatformUserID, m.publishPath),
		publishParams{CreationID: container.ID, AccessToken: creds.AccessToken}, &published); err != nil {
		return "", err
	}

	// The post is live at this point; a missing permalink is not a failure.
	var link struct {
		Permalink string `json:"permalink"`
	}
	_ = m.get(ctx, nil, joinURL(m.baseURL, published.ID), permalinkParams{Fields: "permalink", AccessToken: creds.AccessToken}, &link)
	return link.Permalink, nil
}

func NewThreads(baseURL string, hc *http.Client) *MetaPublisher {
	if baseURL == "" {
		baseURL = threadsAPIBase
	}
	return &MetaPublisher{
		client:      newClient(model.PlatformThreads, hc),
		baseURL:     baseURL,
		createPath:  "threads",
		publishPath: "threads_publish",
		textField:   func(p *containerParams, text string) { p.Text = strings.TrimSpace(text) },
	}
}

func NewInstagram(baseURL string, hc *http.Client) *MetaPublisher {
	if baseURL == "" {
		baseURL = instagramAPIBase
	}
	return &MetaPublisher{
		client:        newClient(model.PlatformInstagram, hc),
		baseURL:       baseURL,
		createPath:    "media",
		publishPath:   "media_publish",
		requiresImage: true,
		textField:     func(p *containerParams, text string) { p.Caption = strings.TrimSpace(text) },
	}
}
