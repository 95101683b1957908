package usecase

import (
	"context"
	"net/http"

	"github.com/dghubble/oauth1"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// oauth1Flow is the three-legged OAuth 1.0a dance: request token, user authorization, access token.
type oauth1Flow struct {
	vault repository.IVault
	http  *http.Client
}

func (f *oauth1Flow) config(spec model.ProviderSpec, keys *model.AppKeys) *oauth1.Config {
	return &oauth1.Config{
		ConsumerKey:    keys.ClientID,
		ConsumerSecret: keys.ClientSecret,
		CallbackURL:    keys.CallbackURL,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: spec.RequestTokenURL,
			AuthorizeURL:    spec.AuthorizeURL1a,
			AccessTokenURL:  spec.AccessTokenURL,
		},
		HTTPClient: f.http,
	}
}

func (f *oauth1Flow) begin(_ context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction) (string, error) {
	cfg := f.config(spec, keys)
	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return "", oauth1Error(spec.Platform, "request token", err)
	}
	sealed, err := f.vault.Encrypt(requestSecret)
	if err != nil {
		return "", err
	}
	authURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", err
	}
	tx.RequestToken = requestToken
	tx.RequestTokenSecret = sealed
	return authURL.String(), nil
}

func (f *oauth1Flow) complete(ctx context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction, params model.CallbackParams) (*grant, error) {
	if params.OAuthVerifier == "" {
		return nil, &model.ProviderError{Platform: spec.Platform, Kind: model.ProviderPermanent, Message: "callback carried no oauth_verifier"}
	}
	requestSecret, err := f.vault.Decrypt(tx.RequestTokenSecret)
	if err != nil {
		return nil, err
	}
	cfg := f.config(spec, keys)
	accessToken, accessSecret, err := cfg.AccessToken(tx.RequestToken, requestSecret, params.OAuthVerifier)
	if err != nil {
		return nil, oauth1Error(spec.Platform, "access token", err)
	}
	signed := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, f.http), oauth1.NewToken(accessToken, accessSecret))
	// 1.0a access tokens do not expire.
	return &grant{AccessToken: accessToken, TokenSecret: accessSecret, Client: signed}, nil
}

// oauth1Error hides the provider response, which the library folds into the error text.
func oauth1Error(platform model.Platform, op string, err error) error {
	logger.GetLogger().WithFields(map[string]interface{}{
		"platform": platform,
		"op":       op,
		"error":    err.Error(),
	}).Warn("OAuth 1.0a token endpoint failed")
	return &model.ProviderError{Platform: platform, Kind: model.ProviderPermanent, Message: op + " was rejected"}
}
