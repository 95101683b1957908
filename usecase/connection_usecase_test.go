package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
)

// racingRepo lets another writer win the first compare-and-swap.
type racingRepo struct {
	repository.IConnection
	once sync.Once
	race func()
}

func (r *racingRepo) CompareAndSwap(ctx context.Context, c *model.SocialConnection, expected int64) error {
	r.once.Do(r.race)
	return r.IConnection.CompareAndSwap(ctx, c, expected)
}

func TestConnectionUsecase_UpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.connect(t, "u1", model.PlatformTwitter, "token", nil)

	repo := &racingRepo{IConnection: h.repos.Connections}
	repo.race = func() {
		cur, err := h.repos.Connections.Get(ctx, "u1", model.PlatformTwitter)
		require.NoError(t, err)
		cur.LastError = "written by someone else"
		require.NoError(t, h.repos.Connections.CompareAndSwap(ctx, cur, cur.Version))
	}
	u := NewConnectionUsecase(repo)

	calls := 0
	got, err := u.Update(ctx, "u1", model.PlatformTwitter, func(cur *model.SocialConnection) *model.SocialConnection {
		calls++
		cur.PlatformUsername = "renamed"
		return cur
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(3), got.Version)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.PlatformUsername)
	assert.Equal(t, "written by someone else", stored.LastError)
}

func TestConnectionUsecase_UpdateClearsTokensOutsideConnected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	exp := time.Now().Add(time.Hour)
	h.connect(t, "u1", model.PlatformLinkedIn, "token", &exp)

	got, err := h.conns.Update(ctx, "u1", model.PlatformLinkedIn, func(cur *model.SocialConnection) *model.SocialConnection {
		cur.Status = model.StatusError
		return cur
	})
	require.NoError(t, err)
	assert.Empty(t, got.AccessToken)
	assert.Nil(t, got.TokenExpiresAt)
}

func TestConnectionUsecase_MarkExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	conn := h.connect(t, "u1", model.PlatformTwitter, "token", nil)

	changed, err := h.conns.MarkExpired(ctx, "u1", model.PlatformTwitter, conn, "rejected by Twitter")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.conns.MarkExpired(ctx, "u1", model.PlatformTwitter, conn, "rejected by Twitter")
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, stored.Status)
	assert.Empty(t, stored.AccessToken)
	assert.Equal(t, "newsbot", stored.PlatformUsername)
	assert.Equal(t, "rejected by Twitter", stored.LastError)
	assert.Equal(t, int64(2), stored.Version)
}

func TestConnectionUsecase_MarkExpiredKeepsNewerTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	old := h.connect(t, "u1", model.PlatformTwitter, "old-token", nil)
	fresh := h.connect(t, "u1", model.PlatformTwitter, "new-token", nil)

	changed, err := h.conns.MarkExpired(ctx, "u1", model.PlatformTwitter, old, "rejected by Twitter")
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)
	assert.Equal(t, fresh.AccessToken, stored.AccessToken)
}

func TestConnectionUsecase_MarkExpiredWithoutRow(t *testing.T) {
	h := newHarness(t)
	changed, err := h.conns.MarkExpired(context.Background(), "u1", model.PlatformThreads, nil, "gone")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConnectionUsecase_DisconnectLeavesTombstone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	exp := time.Now().Add(time.Hour)
	h.connect(t, "u1", model.PlatformInstagram, "token", &exp)

	require.NoError(t, h.conns.Disconnect(ctx, "u1", model.PlatformInstagram))

	stored, err := h.conns.Get(ctx, "u1", model.PlatformInstagram)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StatusDisconnected, stored.Status)
	assert.Empty(t, stored.AccessToken)
	assert.Empty(t, stored.RefreshToken)
	assert.Nil(t, stored.TokenExpiresAt)

	// Nothing to disconnect is not an error.
	require.NoError(t, h.conns.Disconnect(ctx, "u1", model.PlatformLinkedIn))
	missing, err := h.conns.Get(ctx, "u1", model.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConnectionUsecase_List(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	h.conns.now = func() time.Time { return now }

	far := now.Add(30 * 24 * time.Hour)
	lapsed := now.Add(-time.Minute)
	soon := now.Add(24 * time.Hour)
	h.connect(t, "u1", model.PlatformTwitter, "a", &far)
	h.connect(t, "u1", model.PlatformLinkedIn, "b", &lapsed)
	h.connect(t, "u1", model.PlatformThreads, "c", &soon)
	h.connect(t, "u2", model.PlatformInstagram, "d", &far)

	views, err := h.conns.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, len(model.Platforms))

	assert.Equal(t, "twitter", views[0].Platform)
	assert.True(t, views[0].Connected)
	assert.Equal(t, "newsbot", views[0].Username)
	assert.False(t, views[0].ExpiresSoon)

	assert.Equal(t, "linkedin", views[1].Platform)
	assert.False(t, views[1].Connected)
	assert.Equal(t, string(model.StatusExpired), views[1].Status)

	assert.Equal(t, "threads", views[2].Platform)
	assert.True(t, views[2].Connected)
	assert.True(t, views[2].ExpiresSoon)

	assert.Equal(t, "instagram", views[3].Platform)
	assert.False(t, views[3].Connected)
	assert.Equal(t, string(model.StatusDisconnected), views[3].Status)
}

func TestConnectionUsecase_SweepExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	now := time.Now().UTC()
	lapsed := now.Add(-time.Minute)
	valid := now.Add(time.Hour)
	h.connect(t, "u1", model.PlatformTwitter, "a", &lapsed)
	h.connect(t, "u1", model.PlatformLinkedIn, "b", &valid)
	_, err := h.conns.Update(ctx, "u1", model.PlatformThreads, func(*model.SocialConnection) *model.SocialConnection {
		return &model.SocialConnection{Status: model.StatusAuthorizationPending}
	})
	require.NoError(t, err)

	// A fresh pending row survives.
	report, err := h.conns.SweepExpired(ctx, now, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Expired: 1}, report)

	report, err = h.conns.SweepExpired(ctx, now.Add(time.Hour), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Abandoned)

	twitter, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, twitter.Status)
	assert.Empty(t, twitter.AccessToken)

	threads, err := h.conns.Get(ctx, "u1", model.PlatformThreads)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisconnected, threads.Status)
}

func TestConnectionUsecase_AbandonPendingLeavesConnected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.connect(t, "u1", model.PlatformTwitter, "a", nil)

	changed, err := h.conns.AbandonPending(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := h.conns.Get(ctx, "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, stored.Status)
}
