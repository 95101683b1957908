package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

const ErrorUnmarshal = "Error while unmarshal"

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var pe *model.ProviderError
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrUnsupportedPlatform), errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrUserDenied):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrDecryption), errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &pe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Only the user message leaves the server.
func respondError(c *gin.Context, platform model.Platform, err error) {
	status := statusFor(err)
	entry := logger.GetLogger().WithFields(map[string]interface{}{
		"path":     c.FullPath(),
		"platform": platform,
		"status":   status,
		"error":    err.Error(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}
	c.JSON(status, dto.ErrorRes(model.ErrorCode(err), model.UserMessage(platform, err)))
}

// badRequest answers a body that failed to bind. Validator output stays in the log.
func badRequest(c *gin.Context, err error) {
	logger.GetLogger().WithFields(map[string]interface{}{
		"path":  c.FullPath(),
		"error": err.Error(),
	}).Info(ErrorUnmarshal)
	c.JSON(http.StatusBadRequest, dto.ErrorRes(model.ErrorCode(model.ErrInvalidInput), model.UserMessage("", model.ErrInvalidInput)))
}

// platformParam parses :platform, writing a 400 when it is unknown.
func platformParam(c *gin.Context) (model.Platform, bool) {
	p, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		logger.GetLogger().WithField("error", err.Error()).Info("Unknown platform in path")
		c.JSON(http.StatusBadRequest, dto.ErrorRes(model.ErrorCode(err), model.UserMessage("", err)))
		return "", false
	}
	return p, true
}

func userID(c *gin.Context) string { return c.GetString("user_id") }
