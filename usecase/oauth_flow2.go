package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

const opRefresh = "refresh"

// grant is what a completed authorization yields before it is sealed into a connection.
type grant struct {
	AccessToken  string
	RefreshToken string
	TokenSecret  string
	ExpiresAt    *time.Time
	Profile      *model.Profile
	// Client is authenticated as the new account, for the profile lookup.
	Client *http.Client
}

// authFlow is one authorization variant. begin fills the transaction fields the variant needs.
type authFlow interface {
	begin(ctx context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction) (string, error)
	complete(ctx context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction, params model.CallbackParams) (*grant, error)
}

// oauth2Flow covers plain authorization code and authorization code with PKCE.
type oauth2Flow struct {
	pkce  bool
	vault repository.IVault
	http  *http.Client
}

func oauth2Config(spec model.ProviderSpec, keys *model.AppKeys) *oauth2.Config {
	style := oauth2.AuthStyleInParams
	if spec.ClientAuthHeader {
		style = oauth2.AuthStyleInHeader
	}
	scopes := keys.Scopes
	if spec.ScopeSeparator != "" && spec.ScopeSeparator != " " && len(scopes) > 0 {
		scopes = []string{strings.Join(scopes, spec.ScopeSeparator)}
	}
	return &oauth2.Config{
		ClientID:     keys.ClientID,
		ClientSecret: keys.ClientSecret,
		RedirectURL:  keys.CallbackURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spec.AuthURL,
			TokenURL:  spec.TokenURL,
			AuthStyle: style,
		},
	}
}

func (f *oauth2Flow) begin(_ context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction) (string, error) {
	// GenerateVerifier yields 32 random octets, base64url encoded.
	tx.State = oauth2.GenerateVerifier()
	var opts []oauth2.AuthCodeOption
	if f.pkce {
		verifier := oauth2.GenerateVerifier()
		sealed, err := f.vault.Encrypt(verifier)
		if err != nil {
			return "", err
		}
		tx.Verifier = sealed
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return oauth2Config(spec, keys).AuthCodeURL(tx.State, opts...), nil
}

func (f *oauth2Flow) complete(ctx context.Context, spec model.ProviderSpec, keys *model.AppKeys, tx *model.OAuthTransaction, params model.CallbackParams) (*grant, error) {
	if params.Code == "" {
		return nil, &model.ProviderError{Platform: spec.Platform, Kind: model.ProviderPermanent, Message: "callback carried no authorization code"}
	}
	var opts []oauth2.AuthCodeOption
	if f.pkce {
		verifier, err := f.vault.Decrypt(tx.Verifier)
		if err != nil {
			return nil, err
		}
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	cfg := oauth2Config(spec, keys)
	tok, err := cfg.Exchange(ctx, params.Code, opts...)
	if err != nil {
		return nil, tokenEndpointError(ctx, spec.Platform, "code exchange", err)
	}
	g := &grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Client:       cfg.Client(ctx, tok),
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		g.ExpiresAt = &exp
	}
	return g, nil
}

// refresh trades a refresh token for a new token through oauth2.TokenSource.
func (f *oauth2Flow) refresh(ctx context.Context, spec model.ProviderSpec, keys *model.AppKeys, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	src := oauth2Config(spec, keys).TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, tokenEndpointError(ctx, spec.Platform, opRefresh, err)
	}
	return tok, nil
}

// tokenEndpointError maps token endpoint failures. invalid_grant on refresh means the grant is gone.
func tokenEndpointError(ctx context.Context, platform model.Platform, op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		logger.GetLogger().WithFields(map[string]interface{}{
			"platform": platform,
			"op":       op,
			"status":   status,
			"code":     re.ErrorCode,
		}).Warn("Token endpoint rejected the request")
		if op == opRefresh && re.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%s %s: %w", platform, op, model.ErrInvalidToken)
		}
		msg := re.ErrorCode
		if re.ErrorDescription != "" {
			msg += ": " + re.ErrorDescription
		}
		if msg == "" {
			msg = op + " failed"
		}
		return model.NewProviderError(platform, status, msg)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", platform, op, model.ErrTimeout)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s %s: %w", platform, op, model.ErrTimeout)
	}
	return &model.ProviderError{Platform: platform, Kind: model.ProviderTransient, Message: op + " failed"}
}
