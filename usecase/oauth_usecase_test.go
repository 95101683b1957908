package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/cache"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/clients/platforms"
)

// fakeProvider answers like Twitter's OAuth 2.0 and 1.0a endpoints.
type fakeProvider struct {
	srv         *httptest.Server
	tokenCalls  atomic.Int32
	accessCalls atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			return
		}
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-twitter" || secret != "secret-twitter" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "error_description": "bad code"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 7200, "token_type": "bearer",
			})
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "rt-1" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "at-2", "expires_in": 7200, "token_type": "bearer"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		}
	})
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer at-1" && !strings.HasPrefix(auth, "OAuth ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": "42", "username": "newsbot"}})
	})
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		fp.accessCalls.Add(1)
		if !strings.Contains(r.Header.Get("Authorization"), `oauth_token="req-token"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=acc-token&oauth_token_secret=acc-secret&user_id=42&screen_name=newsbot"))
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (fp *fakeProvider) providers() map[model.Platform]model.ProviderSpec {
	specs := model.DefaultProviders()
	tw := specs[model.PlatformTwitter]
	base := fp.srv.URL
	tw.AuthURL = base + "/i/oauth2/authorize"
	tw.TokenURL = base + "/2/oauth2/token"
	tw.RequestTokenURL = base + "/oauth/request_token"
	tw.AuthorizeURL1a = base + "/oauth/authorize"
	tw.AccessTokenURL = base + "/oauth/access_token"
	tw.ProfileURL = base + "/2/users/me"
	specs[model.PlatformTwitter] = tw
	return specs
}

func newOAuth(h *harness, fp *fakeProvider, limiter RateLimiter) *OAuthUsecase {
	specs := fp.providers()
	profiles := platforms.NewProfileFetcher(map[model.Platform]string{model.PlatformTwitter: specs[model.PlatformTwitter].ProfileURL})
	return NewOAuthUsecase(specs, h.creds, h.conns, h.txs, h.vault, profiles, OAuthOptions{
		TransactionTTL: 10 * time.Minute,
		HTTPClient:     fp.srv.Client(),
		Limiter:        limiter,
	})
}

func beginState(t *testing.T, u *OAuthUsecase, userID string) (string, url.Values) {
	t.Helper()
	authURL, err := u.BeginAuthorization(context.Background(), model.PlatformTwitter, userID)
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	require.NotEmpty(t, q.Get("state"))
	return q.Get("state"), q
}

func TestOAuthUsecase_PKCEConnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, q := beginState(t, u, "u1")
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "client-twitter", q.Get("client_id"))
	assert.Equal(t, callbackFor(model.PlatformTwitter), q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "tweet.write")

	pending, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAuthorizationPending, pending.Status)

	conn, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: state})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, conn.Status)
	assert.Equal(t, "42", conn.PlatformUserID)
	assert.Equal(t, "newsbot", conn.PlatformUsername)
	require.NotNil(t, conn.TokenExpiresAt)
	assert.True(t, conn.TokenExpiresAt.After(time.Now()))

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.NotEqual(t, "at-1", stored.AccessToken)
	access, err := h.vault.Decrypt(stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "at-1", access)
	refresh, err := h.vault.Decrypt(stored.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", refresh)

	// The state is single use.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: state})
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, int32(1), fp.tokenCalls.Load())
}

func TestOAuthUsecase_ForgedStateChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, _ := beginState(t, u, "u1")
	before, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)

	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: "forged"})
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, "invalid_state", model.ErrorCode(err))
	assert.Zero(t, fp.tokenCalls.Load())

	after, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, model.StatusAuthorizationPending, after.Status)

	// The genuine callback still goes through.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: state})
	require.NoError(t, err)
}

func TestOAuthUsecase_NewBeginSupersedesOld(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	first, _ := beginState(t, u, "u1")
	second, _ := beginState(t, u, "u1")
	require.NotEqual(t, first, second)

	_, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: first})
	assert.ErrorIs(t, err, model.ErrInvalidState)
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: second})
	require.NoError(t, err)
}

func TestOAuthUsecase_ExchangeFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, _ := beginState(t, u, "u1")
	_, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "bad-code", State: state})
	require.Error(t, err)
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, stored.Status)
	assert.Equal(t, "Twitter rejected the request", stored.LastError)
	assert.Empty(t, stored.AccessToken)
}

func TestOAuthUsecase_ReauthorizeKeepsWorkingConnection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)
	existing := h.connect(t, "u1", model.PlatformTwitter, "working-token", nil)

	state, _ := beginState(t, u, "u1")
	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)

	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "bad-code", State: state})
	require.Error(t, err)

	stored, err = h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)
	assert.Equal(t, existing.AccessToken, stored.AccessToken)
}

func TestOAuthUsecase_UserDeniedOAuth2(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, _ := beginState(t, u, "u1")
	_, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Error: "access_denied", State: state})
	assert.ErrorIs(t, err, model.ErrUserDenied)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, stored.Status)
	assert.Zero(t, fp.tokenCalls.Load())

	// Denial without any state is still reported as denial.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Error: "access_denied"})
	assert.ErrorIs(t, err, model.ErrUserDenied)
}

func TestOAuthUsecase_ProviderErrorCallbackIsNotDenial(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, _ := beginState(t, u, "u1")
	_, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{
		Error: "server_error", ErrorDescription: "upstream exploded", State: state,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUserDenied)
	assert.Equal(t, "provider_error", model.ErrorCode(err))

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, stored.Status)
	assert.Equal(t, "Twitter is temporarily unavailable. Please try again", stored.LastError)
	assert.NotContains(t, stored.LastError, "exploded")
	assert.Zero(t, fp.tokenCalls.Load())

	// The transaction is spent.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: state})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	// Without a valid state the callback is rejected like any forged one.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Error: "invalid_scope", State: "forged"})
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestOAuthUsecase_OAuth1aConnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion1a)
	u := newOAuth(h, fp, nil)

	authURL, err := u.BeginAuthorization(ctx, model.PlatformTwitter, "u1")
	require.NoError(t, err)
	assert.Equal(t, fp.srv.URL+"/oauth/authorize?oauth_token=req-token", authURL)

	conn, err := u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{OAuthToken: "req-token", OAuthVerifier: "verifier"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, conn.Status)
	assert.Equal(t, "newsbot", conn.PlatformUsername)
	assert.Nil(t, conn.TokenExpiresAt)
	assert.Empty(t, conn.RefreshToken)

	secret, err := h.vault.Decrypt(conn.TokenSecret)
	require.NoError(t, err)
	assert.Equal(t, "acc-secret", secret)
	access, err := h.vault.Decrypt(conn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acc-token", access)
}

func TestOAuthUsecase_OAuth1aDenied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion1a)
	u := newOAuth(h, fp, nil)

	_, err := u.BeginAuthorization(ctx, model.PlatformTwitter, "u1")
	require.NoError(t, err)

	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Denied: "req-token"})
	assert.ErrorIs(t, err, model.ErrUserDenied)
	assert.Equal(t, "user_denied", model.ErrorCode(err))

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, stored.Status)
	assert.Empty(t, stored.AccessToken)
	assert.Empty(t, stored.TokenSecret)

	// The denied request token cannot be completed afterwards.
	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{OAuthToken: "req-token", OAuthVerifier: "verifier"})
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Zero(t, fp.accessCalls.Load())
}

func TestOAuthUsecase_NotConfigured(t *testing.T) {
	h := newHarness(t)
	fp := newFakeProvider(t)
	u := newOAuth(h, fp, nil)

	_, err := u.BeginAuthorization(context.Background(), model.PlatformLinkedIn, "u1")
	assert.ErrorIs(t, err, model.ErrNotConfigured)

	_, err = u.BeginAuthorization(context.Background(), model.Platform("myspace"), "u1")
	assert.ErrorIs(t, err, model.ErrUnsupportedPlatform)
}

func TestOAuthUsecase_ConnectRateLimit(t *testing.T) {
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, cache.NewRateLimiter(h.kv, 2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := u.BeginAuthorization(context.Background(), model.PlatformTwitter, "u1")
		require.NoError(t, err)
	}
	_, err := u.BeginAuthorization(context.Background(), model.PlatformTwitter, "u1")
	assert.ErrorIs(t, err, model.ErrRateLimited)

	// Other users have their own budget.
	_, err = u.BeginAuthorization(context.Background(), model.PlatformTwitter, "u2")
	assert.NoError(t, err)
}

func TestOAuthUsecase_Abandon(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	state, _ := beginState(t, u, "u1")
	require.NoError(t, u.AbandonAuthorization(ctx, model.PlatformTwitter, "u1"))

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, stored.Status)

	_, err = u.CompleteAuthorization(ctx, model.PlatformTwitter, model.CallbackParams{Code: "good-code", State: state})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	// Abandoning with nothing open is harmless.
	require.NoError(t, u.AbandonAuthorization(ctx, model.PlatformTwitter, "u1"))
}

func TestOAuthUsecase_Refresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	lapsed := time.Now().Add(-time.Minute)
	access, err := h.vault.Encrypt("at-1")
	require.NoError(t, err)
	refresh, err := h.vault.Encrypt("rt-1")
	require.NoError(t, err)
	conn, err := h.conns.Upsert(ctx, &model.SocialConnection{
		UserID: "u1", Platform: model.PlatformTwitter, Status: model.StatusConnected,
		AccessToken: access, RefreshToken: refresh, TokenExpiresAt: &lapsed,
		PlatformUserID: "42", PlatformUsername: "newsbot",
	})
	require.NoError(t, err)

	updated, err := u.Refresh(ctx, conn)
	require.NoError(t, err)
	assert.True(t, updated.Usable(time.Now()))
	assert.Equal(t, "newsbot", updated.PlatformUsername)

	newAccess, err := h.vault.Decrypt(updated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "at-2", newAccess)
	kept, err := h.vault.Decrypt(updated.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", kept)
}

func TestOAuthUsecase_RefreshRevoked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fp := newFakeProvider(t)
	h.saveApp(t, model.PlatformTwitter, model.OAuthVersion2)
	u := newOAuth(h, fp, nil)

	refresh, err := h.vault.Encrypt("rt-revoked")
	require.NoError(t, err)
	conn := &model.SocialConnection{UserID: "u1", Platform: model.PlatformTwitter, Status: model.StatusConnected, RefreshToken: refresh}

	_, err = u.Refresh(ctx, conn)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = u.Refresh(ctx, &model.SocialConnection{UserID: "u1", Platform: model.PlatformTwitter})
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}
