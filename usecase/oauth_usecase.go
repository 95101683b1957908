package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// IOAuthUsecase drives account authorization for every platform.
type IOAuthUsecase interface {
	BeginAuthorization(ctx context.Context, platform model.Platform, userID string) (string, error)
	CompleteAuthorization(ctx context.Context, platform model.Platform, params model.CallbackParams) (*model.SocialConnection, error)
	AbandonAuthorization(ctx context.Context, platform model.Platform, userID string) error
	// Refresh renews an OAuth 2.0 token through its refresh token. Returns model.ErrInvalidToken
	// when the connection cannot be refreshed.
	Refresh(ctx context.Context, conn *model.SocialConnection) (*model.SocialConnection, error)
}

// RateLimiter counts hits per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type OAuthOptions struct {
	TransactionTTL time.Duration
	HTTPClient     *http.Client
	Limiter        RateLimiter
}

type OAuthUsecase struct {
	providers map[model.Platform]model.ProviderSpec
	creds     ICredentialUsecase
	conns     IConnectionUsecase
	txs       repository.ITransactionStore
	vault     repository.IVault
	profiles  repository.IProfileFetcher
	limiter   RateLimiter
	ttl       time.Duration
	flows     map[model.FlowKind]authFlow
	now       func() time.Time
}

func NewOAuthUsecase(
	providers map[model.Platform]model.ProviderSpec,
	creds ICredentialUsecase,
	conns IConnectionUsecase,
	txs repository.ITransactionStore,
	vault repository.IVault,
	profiles repository.IProfileFetcher,
	opts OAuthOptions,
) *OAuthUsecase {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	ttl := opts.TransactionTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthUsecase{
		providers: providers,
		creds:     creds,
		conns:     conns,
		txs:       txs,
		vault:     vault,
		profiles:  profiles,
		limiter:   opts.Limiter,
		ttl:       ttl,
		flows: map[model.FlowKind]authFlow{
			model.FlowOAuth2:     &oauth2Flow{vault: vault, http: hc},
			model.FlowOAuth2PKCE: &oauth2Flow{pkce: true, vault: vault, http: hc},
			model.FlowOAuth1a:    &oauth1Flow{vault: vault, http: hc},
		},
		now: time.Now,
	}
}

func (u *OAuthUsecase) spec(platform model.Platform) (model.ProviderSpec, error) {
	spec, ok := u.providers[platform]
	if !ok {
		return spec, model.WithPlatform(platform, model.ErrUnsupportedPlatform)
	}
	return spec, nil
}

func (u *OAuthUsecase) BeginAuthorization(ctx context.Context, platform model.Platform, userID string) (string, error) {
	spec, err := u.spec(platform)
	if err != nil {
		return "", err
	}
	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, fmt.Sprintf("connect:%s:%s", userID, platform))
		if err != nil {
			return "", err
		}
		if !ok {
			logger.Security().WithFields(map[string]interface{}{"platform": platform, "user_id": userID}).Warn("Connect rate limit hit")
			return "", model.WithPlatform(platform, model.ErrRateLimited)
		}
	}
	keys, err := u.creds.AppKeys(ctx, platform)
	if err != nil {
		return "", err
	}
	kind, err := spec.FlowFor(keys.Version)
	if err != nil {
		return "", model.WithPlatform(platform, err)
	}

	now := u.now().UTC()
	tx := &model.OAuthTransaction{
		ID:          uuid.NewString(),
		Platform:    platform,
		UserID:      userID,
		Flow:        kind,
		RedirectURL: keys.CallbackURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(u.ttl),
	}
	authURL, err := u.flows[kind].begin(ctx, spec, keys, tx)
	if err != nil {
		return "", model.WithPlatform(platform, err)
	}
	// The transaction must exist before the user can reach the provider's page.
	if err := u.txs.Save(ctx, tx); err != nil {
		return "", err
	}
	if _, err := u.conns.Update(ctx, userID, platform, func(cur *model.SocialConnection) *model.SocialConnection {
		if cur != nil && cur.Status == model.StatusConnected {
			return nil
		}
		if cur == nil {
			cur = &model.SocialConnection{}
		}
		cur.Status = model.StatusAuthorizationPending
		cur.LastError = ""
		return cur
	}); err != nil {
		return "", err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"platform": platform,
		"user_id":  userID,
		"flow":     kind,
		"tx_id":    tx.ID,
	}).Info("Authorization started")
	return authURL, nil
}

func (u *OAuthUsecase) CompleteAuthorization(ctx context.Context, platform model.Platform, params model.CallbackParams) (*model.SocialConnection, error) {
	spec, err := u.spec(platform)
	if err != nil {
		return nil, err
	}
	// Denial wins over state validation: a refused authorization is reported as such even
	// when the state is missing or stale.
	if params.UserDenied() {
		return nil, u.denied(ctx, platform, params)
	}

	key := params.State
	if key == "" {
		key = params.OAuthToken
	}
	tx, err := u.txs.Take(ctx, platform, key)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			logger.Security().WithFields(map[string]interface{}{
				"platform":  platform,
				"has_state": key != "",
			}).Warn("OAuth callback with unknown, expired or replayed state")
		}
		return nil, model.WithPlatform(platform, err)
	}
	lg := logger.GetLogger().WithFields(map[string]interface{}{"platform": platform, "user_id": tx.UserID, "tx_id": tx.ID})

	if perr := params.ProviderFailure(platform); perr != nil {
		lg.WithField("error", perr.Error()).Warn("Provider returned an authorization error")
		u.failPending(ctx, tx, perr)
		return nil, model.WithPlatform(platform, perr)
	}

	g, err := u.exchange(ctx, spec, tx, params)
	if err != nil {
		lg.WithField("error", err.Error()).Warn("Authorization failed")
		u.failPending(ctx, tx, err)
		return nil, model.WithPlatform(platform, err)
	}

	sealed, err := u.seal(g)
	if err != nil {
		u.failPending(ctx, tx, err)
		return nil, model.WithPlatform(platform, err)
	}
	conn, err := u.conns.Update(ctx, tx.UserID, platform, func(*model.SocialConnection) *model.SocialConnection {
		next := sealed
		return &next
	})
	if err != nil {
		return nil, model.WithPlatform(platform, err)
	}
	lg.WithField("username", conn.PlatformUsername).Info("Platform connected")
	return conn, nil
}

// exchange runs the variant's completion and resolves the account profile.
func (u *OAuthUsecase) exchange(ctx context.Context, spec model.ProviderSpec, tx *model.OAuthTransaction, params model.CallbackParams) (*grant, error) {
	keys, err := u.creds.AppKeys(ctx, tx.Platform)
	if err != nil {
		return nil, err
	}
	flow, ok := u.flows[tx.Flow]
	if !ok {
		return nil, fmt.Errorf("%w: unknown flow %q", model.ErrInvalidState, tx.Flow)
	}
	g, err := flow.complete(ctx, spec, keys, tx, params)
	if err != nil {
		return nil, err
	}
	if g.Profile == nil || g.Profile.ID == "" {
		profile, err := u.profiles.FetchProfile(ctx, tx.Platform, g.Client)
		if err != nil {
			return nil, err
		}
		g.Profile = profile
	}
	return g, nil
}

// seal encrypts the grant into the connected state.
func (u *OAuthUsecase) seal(g *grant) (model.SocialConnection, error) {
	var c model.SocialConnection
	var err error
	if c.AccessToken, err = u.encryptOptional(g.AccessToken); err != nil {
		return c, err
	}
	if c.RefreshToken, err = u.encryptOptional(g.RefreshToken); err != nil {
		return c, err
	}
	if c.TokenSecret, err = u.encryptOptional(g.TokenSecret); err != nil {
		return c, err
	}
	c.Status = model.StatusConnected
	c.TokenExpiresAt = g.ExpiresAt
	c.PlatformUserID = g.Profile.ID
	c.PlatformUsername = g.Profile.Username
	return c, nil
}

func (u *OAuthUsecase) encryptOptional(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return u.vault.Encrypt(s)
}

// denied discards whatever transaction the callback identifies and releases a pending connection.
func (u *OAuthUsecase) denied(ctx context.Context, platform model.Platform, params model.CallbackParams) error {
	var tx *model.OAuthTransaction
	for _, key := range []string{params.State, params.OAuthToken, params.Denied} {
		if key == "" {
			continue
		}
		if t, err := u.txs.Take(ctx, platform, key); err == nil {
			tx = t
			break
		}
	}
	fields := map[string]interface{}{"platform": platform, "error": params.Error}
	if tx != nil {
		fields["user_id"] = tx.UserID
		if _, err := u.conns.AbandonPending(ctx, tx.UserID, platform); err != nil {
			logger.GetLogger().WithFields(fields).WithField("cause", err.Error()).Error("Could not reset connection after denial")
		}
	}
	logger.GetLogger().WithFields(fields).Info("User denied authorization")
	return model.WithPlatform(platform, model.ErrUserDenied)
}

// failPending records a failed completion on a pending connection. A working connection that
// was being re-authorized keeps its tokens.
func (u *OAuthUsecase) failPending(ctx context.Context, tx *model.OAuthTransaction, cause error) {
	msg := model.UserMessage(tx.Platform, cause)
	if _, err := u.conns.Update(ctx, tx.UserID, tx.Platform, func(cur *model.SocialConnection) *model.SocialConnection {
		if cur == nil || cur.Status != model.StatusAuthorizationPending {
			return nil
		}
		cur.Status = model.StatusError
		cur.LastError = msg
		return cur
	}); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"platform": tx.Platform, "error": err.Error()}).Error("Could not record authorization failure")
	}
}

// AbandonAuthorization handles the client reporting a closed authorization popup.
func (u *OAuthUsecase) AbandonAuthorization(ctx context.Context, platform model.Platform, userID string) error {
	if _, err := u.spec(platform); err != nil {
		return err
	}
	discarded, err := u.txs.Discard(ctx, userID, platform)
	if err != nil {
		return err
	}
	reset, err := u.conns.AbandonPending(ctx, userID, platform)
	if err != nil {
		return err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"platform":    platform,
		"user_id":     userID,
		"discarded":   discarded,
		"reset_state": reset,
	}).Info("Authorization abandoned by user")
	return nil
}

func (u *OAuthUsecase) Refresh(ctx context.Context, conn *model.SocialConnection) (*model.SocialConnection, error) {
	spec, err := u.spec(conn.Platform)
	if err != nil {
		return nil, err
	}
	if conn.RefreshToken == "" || conn.TokenSecret != "" {
		return nil, model.WithPlatform(conn.Platform, model.ErrInvalidToken)
	}
	keys, err := u.creds.AppKeys(ctx, conn.Platform)
	if err != nil {
		return nil, err
	}
	kind, err := spec.FlowFor(keys.Version)
	if err != nil || kind == model.FlowOAuth1a {
		return nil, model.WithPlatform(conn.Platform, model.ErrInvalidToken)
	}
	refreshToken, err := u.vault.Decrypt(conn.RefreshToken)
	if err != nil {
		return nil, model.WithPlatform(conn.Platform, err)
	}
	tok, err := u.flows[kind].(*oauth2Flow).refresh(ctx, spec, keys, refreshToken)
	if err != nil {
		return nil, model.WithPlatform(conn.Platform, err)
	}

	g := &grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Profile:      &model.Profile{ID: conn.PlatformUserID, Username: conn.PlatformUsername},
	}
	if g.RefreshToken == "" {
		g.RefreshToken = refreshToken
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		g.ExpiresAt = &exp
	}
	sealed, err := u.seal(g)
	if err != nil {
		return nil, err
	}
	updated, err := u.conns.Update(ctx, conn.UserID, conn.Platform, func(cur *model.SocialConnection) *model.SocialConnection {
		// Someone reconnected or disconnected meanwhile; keep their state.
		if cur == nil || !cur.SameTokens(conn) {
			return nil
		}
		next := sealed
		return &next
	})
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithFields(map[string]interface{}{"platform": conn.Platform, "user_id": conn.UserID}).Info("Access token refreshed")
	return updated, nil
}
