package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// Auth resolves the caller and stores it under "user_id". With no secret key configured the
// server runs single-user and every request acts as localUserID.
func Auth(secretKey, localUserID string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secretKey == "" {
			ctx.Set("user_id", localUserID)
			ctx.Next()
			return
		}

		raw := bearer(ctx)
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized("Unauthorized"))
			return
		}
		userClaims, err := getClaim(raw, secretKey)
		if err != nil {
			res := unauthorized("Unauthorized")
			abort(err, &res)
			logger.Security().WithFields(map[string]interface{}{
				"path":  ctx.FullPath(),
				"error": err.Error(),
			}).Warn("Rejected bearer token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		if userClaims.Issuer == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized("Token has no subject"))
			return
		}
		ctx.Set("user_id", userClaims.Issuer)
		ctx.Next()
	}
}

// bearer reads the Authorization header. EventSource cannot set headers, so the
// access_token query parameter is accepted too.
func bearer(ctx *gin.Context) string {
	if authorization := ctx.GetHeader("Authorization"); authorization != "" {
		token, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return ctx.Query("access_token")
}

func unauthorized(msg string) dto.Res {
	return dto.Res{ResponseCode: "401", ResponseMessage: msg}
}

func abort(err error, res *dto.Res) {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			res.ResponseMessage = "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			// Token is either expired or not active yet
			res.ResponseMessage = "Timing is everything"
		} else {
			res.ResponseMessage = "Couldn't handle this token"
		}
	}
}

func getClaim(raw, secretKey string) (model.UserClaims, error) {
	var userClaims model.UserClaims
	_, err := jwt.ParseWithClaims(
		raw,
		&userClaims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
	)
	return userClaims, err
}
