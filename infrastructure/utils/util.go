package utils

import (
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// GenerateToken signs a bearer token for userID. A zero ttl yields a token that never expires.
func GenerateToken(userID, userName string, ttl time.Duration, secretKey string) (string, error) {
	now := GetCurrentTime()
	claims := model.UserClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:   userID,
			IssuedAt: now.Unix(),
		},
		UserName: userName,
	}
	if ttl != 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}
