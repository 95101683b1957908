package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/utils"
)

const secret = "test-secret"

func whoAmI(secretKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(secretKey, "local"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func get(r http.Handler, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken("u-42", "editor", time.Hour, secret)
	require.NoError(t, err)

	w := get(whoAmI(secret), "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", w.Body.String())

	w = get(whoAmI(secret), "/me?access_token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", w.Body.String())
}

func TestAuth_Rejects(t *testing.T) {
	expired, err := utils.GenerateToken("u-42", "editor", -time.Minute, secret)
	require.NoError(t, err)
	forged, err := utils.GenerateToken("u-42", "editor", time.Hour, "other-secret")
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		message       string
	}{
		{"missing", "", "Unauthorized"},
		{"not bearer", "Basic abc", "Unauthorized"},
		{"garbage", "Bearer abc", "That's not even a token"},
		{"expired", "Bearer " + expired, "Timing is everything"},
		{"wrong key", "Bearer " + forged, "Couldn't handle this token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(whoAmI(secret), "/me", tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestAuth_SingleUserMode(t *testing.T) {
	w := get(whoAmI(""), "/me", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local", w.Body.String())
}
