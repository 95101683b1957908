package platforms

import (
	"context"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/dghubble/oauth1"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

const (
	twitterAPIBase  = "https://api.twitter.com"
	twitterMaxChars = 280
)

// Twitter posts through the v2 tweets endpoint. OAuth 2.0 connections use a bearer token;
// OAuth 1.0a connections sign each request with the consumer and access token pair.
type Twitter struct {
	client
	baseURL string
}

func NewTwitter(baseURL string, hc *http.Client) *Twitter {
	if baseURL == "" {
		baseURL = twitterAPIBase
	}
	return &Twitter{client: newClient(model.PlatformTwitter, hc), baseURL: baseURL}
}

func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }

func (t *Twitter) Publish(ctx context.Context, creds model.PlatformCredentials, content model.PublishContent) (string, error) {
	text := composeText(content)
	if text == "" {
		return "", model.NewProviderError(model.PlatformTwitter, http.StatusBadRequest, "post text is empty")
	}
	if utf8.RuneCountInString(text) > twitterMaxChars {
		return "", model.NewProviderError(model.PlatformTwitter, http.StatusBadRequest, fmt.Sprintf("post exceeds %d characters", twitterMaxChars))
	}

	hc, header := t.authorize(ctx, creds)
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	body := map[string]string{"text": text}
	if _, err := t.postJSON(ctx, hc, joinURL(t.baseURL, "2", "tweets"), header, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", &model.ProviderError{Platform: model.PlatformTwitter, Kind: model.ProviderPermanent, Message: "tweet id missing from response"}
	}
	return "https://x.com/i/status/" + resp.Data.ID, nil
}

func (t *Twitter) authorize(ctx context.Context, creds model.PlatformCredentials) (*http.Client, http.Header) {
	if creds.TokenSecret != "" && creds.ConsumerKey != "" {
		cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
		signed := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, t.http), oauth1.NewToken(creds.AccessToken, creds.TokenSecret))
		return signed, nil
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.AccessToken)
	return t.http, header
}
