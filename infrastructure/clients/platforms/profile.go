package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// ProfileFetcher reads the authorized account from each platform's "me" endpoint.
type ProfileFetcher struct {
	urls map[model.Platform]string
}

func NewProfileFetcher(urls map[model.Platform]string) *ProfileFetcher {
	return &ProfileFetcher{urls: urls}
}

func (f *ProfileFetcher) FetchProfile(ctx context.Context, platform model.Platform, hc *http.Client) (*model.Profile, error) {
	endpoint, ok := f.urls[platform]
	if !ok || endpoint == "" {
		return nil, model.WithPlatform(platform, model.ErrNotConfigured)
	}
	var raw json.RawMessage
	if err := newClient(platform, hc).get(ctx, hc, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	p := parseProfile(raw)
	if p.ID == "" {
		return nil, &model.ProviderError{Platform: platform, Kind: model.ProviderPermanent, Message: "profile response has no account id"}
	}
	return p, nil
}

// parseProfile understands the shapes returned by the supported platforms: Twitter wraps the
// user in "data", LinkedIn's OpenID userinfo uses "sub", Instagram returns "user_id".
func parseProfile(raw []byte) *model.Profile {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if dec.Decode(&doc) != nil {
		return &model.Profile{}
	}
	if data, ok := doc["data"].(map[string]interface{}); ok {
		doc = data
	}
	return &model.Profile{
		ID:       firstString(doc, "id", "user_id", "sub", "id_str"),
		Username: firstString(doc, "username", "screen_name", "preferred_username", "name"),
	}
}

func firstString(doc map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := doc[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
