package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

func newTestClient(url string, opts ...Option) *Client {
	opts = append([]Option{WithSleeper(func(time.Duration) {})}, opts...)
	return NewClient(Config{BaseURL: url, APIKey: "k", TextModel: "text-model", ImageModel: "image-model"}, opts...)
}

func TestGenerateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, "tweet")
		assert.Contains(t, req.Messages[1].Content, "Title: Go 1.24 released")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "  Go 1.24 is out!  "}}},
		})
	}))
	defer srv.Close()

	draft, err := newTestClient(srv.URL).GenerateDraft(context.Background(), model.PlatformTwitter,
		model.ContentGenerationInput{ArticleTitle: "Go 1.24 released"})
	require.NoError(t, err)
	assert.Equal(t, "Go 1.24 is out!", draft)
}

func TestGenerateDraft_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	draft, err := newTestClient(srv.URL).GenerateDraft(context.Background(), model.PlatformLinkedIn,
		model.ContentGenerationInput{ArticleTitle: "t"})
	require.NoError(t, err)
	assert.Equal(t, "ok", draft)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateDraft_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateDraft(context.Background(), model.PlatformLinkedIn,
		model.ContentGenerationInput{ArticleTitle: "t"})
	var statusErr *httpStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateDraft_RequiresKeyAndInput(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})
	_, err := c.GenerateDraft(context.Background(), model.PlatformTwitter, model.ContentGenerationInput{ArticleTitle: "t"})
	assert.ErrorIs(t, err, model.ErrNotConfigured)

	_, err = newTestClient("http://unused").GenerateDraft(context.Background(), model.PlatformTwitter, model.ContentGenerationInput{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image-model", req.Model)
		assert.Equal(t, defaultImageSize, req.Size)
		assert.Equal(t, 1, req.N)
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/1.png","revised_prompt":"a cat, watercolor"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).GenerateImage(context.Background(), model.ImageGenerationInput{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/1.png", res.ImageURL)
	assert.Equal(t, "a cat, watercolor", res.RevisedPrompt)
}

func TestBackoffDelay(t *testing.T) {
	c := NewClient(Config{}, WithRetryBackoff(100*time.Millisecond, 300*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, c.backoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, c.backoffDelay(2))
	assert.Equal(t, 300*time.Millisecond, c.backoffDelay(3))
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := parseRetryAfter("3")
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	_, ok = parseRetryAfter("")
	assert.False(t, ok)
}
