package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

// ConnectionsPath is where the UI lists accounts; callbacks land there.
const ConnectionsPath = "/settings/connections"

type IOAuthHandler interface {
	Connect(ctx *gin.Context)
	Abandon(ctx *gin.Context)
	Callback(ctx *gin.Context)
}

type oauthHandler struct {
	oauth     usecase.IOAuthUsecase
	uiBaseURL string
}

func NewOAuthHandler(oauth usecase.IOAuthUsecase, uiBaseURL string) IOAuthHandler {
	return &oauthHandler{oauth: oauth, uiBaseURL: strings.TrimRight(uiBaseURL, "/")}
}

// callbackResult is the query string the UI receives after a callback.
type callbackResult struct {
	Success  bool   `url:"success,omitempty"`
	Error    string `url:"error,omitempty"`
	Platform string `url:"platform"`
	Username string `url:"username,omitempty"`
}

func (h *oauthHandler) Connect(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		return
	}
	authURL, err := h.oauth.BeginAuthorization(c.Request.Context(), platform, userID(c))
	if err != nil {
		respondError(c, platform, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConnectResponse{AuthorizationURL: authURL})
}

func (h *oauthHandler) Abandon(c *gin.Context) {
	platform, ok := platformParam(c)
	if !ok {
		return
	}
	if err := h.oauth.AbandonAuthorization(c.Request.Context(), platform, userID(c)); err != nil {
		respondError(c, platform, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// Callback is hit by the browser coming back from the provider. It always redirects to the UI.
func (h *oauthHandler) Callback(c *gin.Context) {
	lg := logger.GetLogger().WithField("platform", c.Param("platform"))

	platform, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.redirect(c, callbackResult{Error: "invalid_platform", Platform: c.Param("platform")})
		return
	}

	params := model.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
		OAuthToken:       c.Query("oauth_token"),
		OAuthVerifier:    c.Query("oauth_verifier"),
		Denied:           c.Query("denied"),
	}
	conn, err := h.oauth.CompleteAuthorization(c.Request.Context(), platform, params)
	if err != nil {
		code := callbackCode(err)
		lg.WithField("code", code).Warn("Authorization did not complete")
		h.redirect(c, callbackResult{Error: code, Platform: platform.String()})
		return
	}
	lg.WithField("username", conn.PlatformUsername).Info("Account connected")
	h.redirect(c, callbackResult{Success: true, Platform: platform.String(), Username: conn.PlatformUsername})
}

func (h *oauthHandler) redirect(c *gin.Context, res callbackResult) {
	v, err := query.Values(res)
	if err != nil {
		c.String(http.StatusInternalServerError, "cannot build redirect")
		return
	}
	c.Redirect(http.StatusFound, h.uiBaseURL+ConnectionsPath+"?"+v.Encode())
}

// callbackCode narrows errors to the codes the UI knows how to render.
func callbackCode(err error) string {
	var pe *model.ProviderError
	switch {
	case errors.Is(err, model.ErrUserDenied):
		return "user_denied"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, model.ErrDecryption):
		return "credentials_lost"
	case errors.As(err, &pe), errors.Is(err, model.ErrTimeout), errors.Is(err, model.ErrRateLimited), errors.Is(err, model.ErrInvalidToken):
		return "provider_error"
	}
	return "internal_error"
}
