package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

func TestTwitter_PublishBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello\n\nhttps://example.com/a", body["text"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"123","text":"hello"}}`))
	}))
	defer srv.Close()

	url, err := NewTwitter(srv.URL, srv.Client()).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "tok"},
		model.PublishContent{Text: "hello", LinkURL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/i/status/123", url)
}

func TestTwitter_PublishOAuth1Signs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "), auth)
		assert.Contains(t, auth, `oauth_consumer_key="ck"`)
		assert.Contains(t, auth, `oauth_token="at"`)
		_, _ = w.Write([]byte(`{"data":{"id":"9"}}`))
	}))
	defer srv.Close()

	url, err := NewTwitter(srv.URL, srv.Client()).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "at", TokenSecret: "as", ConsumerKey: "ck", ConsumerSecret: "cs"},
		model.PublishContent{Text: "signed"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/i/status/9", url)
}

func TestTwitter_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   model.ProviderErrorKind
	}{
		{http.StatusUnauthorized, model.ProviderAuth},
		{http.StatusTooManyRequests, model.ProviderRateLimited},
		{http.StatusServiceUnavailable, model.ProviderTransient},
		{http.StatusForbidden, model.ProviderAuth},
		{http.StatusBadRequest, model.ProviderPermanent},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"title":"Problem","detail":"upstream said no"}`))
		}))
		_, err := NewTwitter(srv.URL, srv.Client()).Publish(context.Background(),
			model.PlatformCredentials{AccessToken: "tok"}, model.PublishContent{Text: "x"})
		srv.Close()

		var pe *model.ProviderError
		require.True(t, errors.As(err, &pe), "status %d", tc.status)
		assert.Equal(t, tc.kind, pe.Kind)
		assert.Equal(t, tc.status, pe.StatusCode)
		assert.Equal(t, "upstream said no", pe.Message)
	}
}

func TestTwitter_RejectsLongText(t *testing.T) {
	_, err := NewTwitter("http://unused", nil).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "tok"}, model.PublishContent{Text: strings.Repeat("a", 281)})
	var pe *model.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ProviderPermanent, pe.Kind)
}

func TestTwitter_TimeoutMapsToErrTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewTwitter(srv.URL, srv.Client()).Publish(ctx, model.PlatformCredentials{AccessToken: "tok"}, model.PublishContent{Text: "x"})
	require.ErrorIs(t, err, model.ErrTimeout)
}

func TestLinkedIn_Publish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/ugcPosts", r.URL.Path)
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		var post ugcPost
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		assert.Equal(t, "urn:li:person:abc", post.Author)
		share := post.SpecificContent["com.linkedin.ugc.ShareContent"]
		assert.Equal(t, "ARTICLE", share.ShareMediaCategory)
		w.Header().Set("X-Restli-Id", "urn:li:share:77")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	url, err := NewLinkedIn(srv.URL, srv.Client()).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "tok", PlatformUserID: "abc"},
		model.PublishContent{Text: "read this", LinkURL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:77", url)
}

func TestThreads_TwoStepPublish(t *testing.T) {
	var (
		mu    sync.Mutex
		steps []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		steps = append(steps, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/u1/threads":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "TEXT", r.PostForm.Get("media_type"))
			assert.Equal(t, "hi", r.PostForm.Get("text"))
			assert.Equal(t, "tok", r.PostForm.Get("access_token"))
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		case "/u1/threads_publish":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "c1", r.PostForm.Get("creation_id"))
			_, _ = w.Write([]byte(`{"id":"p1"}`))
		case "/p1":
			assert.Equal(t, "permalink", r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"permalink":"https://www.threads.net/@bot/post/p1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	url, err := NewThreads(srv.URL, srv.Client()).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "tok", PlatformUserID: "u1"}, model.PublishContent{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.threads.net/@bot/post/p1", url)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"POST /u1/threads", "POST /u1/threads_publish", "GET /p1"}, steps)
}

func TestInstagram_RequiresImage(t *testing.T) {
	_, err := NewInstagram("http://unused", nil).Publish(context.Background(),
		model.PlatformCredentials{AccessToken: "tok", PlatformUserID: "u1"}, model.PublishContent{Text: "no image"})
	var pe *model.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ProviderPermanent, pe.Kind)
	assert.Equal(t, model.PlatformInstagram, pe.Platform)
}

func TestProfileFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/twitter":
			_, _ = w.Write([]byte(`{"data":{"id":"1","username":"newsbot"}}`))
		case "/linkedin":
			_, _ = w.Write([]byte(`{"sub":"abc","name":"News Bot"}`))
		case "/instagram":
			_, _ = w.Write([]byte(`{"user_id":17841400000000001,"username":"news.bot"}`))
		}
	}))
	defer srv.Close()

	f := NewProfileFetcher(map[model.Platform]string{
		model.PlatformTwitter:   srv.URL + "/twitter",
		model.PlatformLinkedIn:  srv.URL + "/linkedin",
		model.PlatformInstagram: srv.URL + "/instagram",
	})
	p, err := f.FetchProfile(context.Background(), model.PlatformTwitter, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, &model.Profile{ID: "1", Username: "newsbot"}, p)

	p, err = f.FetchProfile(context.Background(), model.PlatformLinkedIn, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, &model.Profile{ID: "abc", Username: "News Bot"}, p)

	p, err = f.FetchProfile(context.Background(), model.PlatformInstagram, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "17841400000000001", p.ID)

	_, err = f.FetchProfile(context.Background(), model.PlatformThreads, srv.Client())
	require.ErrorIs(t, err, model.ErrNotConfigured)
}
