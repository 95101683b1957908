package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

const maxCASAttempts = 8

// MutateFunc receives the current row (nil when absent) and returns the desired row, or
// nil to leave the stored state alone. It may run more than once when writers race.
type MutateFunc func(cur *model.SocialConnection) *model.SocialConnection

// IConnectionUsecase is the only writer of connection state.
type IConnectionUsecase interface {
	Get(ctx context.Context, userID string, platform model.Platform) (*model.SocialConnection, error)
	Update(ctx context.Context, userID string, platform model.Platform, mutate MutateFunc) (*model.SocialConnection, error)
	Upsert(ctx context.Context, conn *model.SocialConnection) (*model.SocialConnection, error)
	MarkExpired(ctx context.Context, userID string, platform model.Platform, seen *model.SocialConnection, reason string) (bool, error)
	Disconnect(ctx context.Context, userID string, platform model.Platform) error
	AbandonPending(ctx context.Context, userID string, platform model.Platform) (bool, error)
	List(ctx context.Context, userID string) ([]dto.ConnectionView, error)
	SweepExpired(ctx context.Context, now time.Time, pendingTTL time.Duration) (SweepReport, error)
}

type SweepReport struct {
	Expired   int `json:"expired"`
	Abandoned int `json:"abandoned"`
}

type ConnectionUsecase struct {
	repo repository.IConnection
	now  func() time.Time
}

func NewConnectionUsecase(repo repository.IConnection) *ConnectionUsecase {
	return &ConnectionUsecase{repo: repo, now: time.Now}
}

func (u *ConnectionUsecase) Get(ctx context.Context, userID string, platform model.Platform) (*model.SocialConnection, error) {
	return u.repo.Get(ctx, userID, platform)
}

// Update applies mutate with compare-and-swap on the row version, re-reading on conflict.
func (u *ConnectionUsecase) Update(ctx context.Context, userID string, platform model.Platform, mutate MutateFunc) (*model.SocialConnection, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := u.repo.Get(ctx, userID, platform)
		if err != nil {
			return nil, err
		}
		var snapshot *model.SocialConnection
		if cur != nil {
			c := *cur
			snapshot = &c
		}
		next := mutate(snapshot)
		if next == nil {
			return cur, nil
		}
		next.UserID, next.Platform = userID, platform
		if !next.Status.CarriesTokens() {
			next.ClearTokens()
		}

		if cur == nil {
			err = u.repo.Insert(ctx, next)
		} else {
			next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
			err = u.repo.CompareAndSwap(ctx, next, cur.Version)
		}
		if errors.Is(err, model.ErrConflict) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, fmt.Errorf("update %s connection: %w", platform, model.ErrConflict)
}

// Upsert stores conn as the full desired state.
func (u *ConnectionUsecase) Upsert(ctx context.Context, conn *model.SocialConnection) (*model.SocialConnection, error) {
	return u.Update(ctx, conn.UserID, conn.Platform, func(*model.SocialConnection) *model.SocialConnection {
		c := *conn
		return &c
	})
}

// MarkExpired moves a connection to expired and drops its tokens, keeping the username for
// display. It is a no-op when already expired, and when seen is given but the stored tokens
// differ from it, meaning a reconnect replaced them in the meantime.
func (u *ConnectionUsecase) MarkExpired(ctx context.Context, userID string, platform model.Platform, seen *model.SocialConnection, reason string) (bool, error) {
	changed := false
	_, err := u.Update(ctx, userID, platform, func(cur *model.SocialConnection) *model.SocialConnection {
		changed = false
		if cur == nil || cur.Status == model.StatusExpired || cur.Status == model.StatusDisconnected {
			return nil
		}
		if seen != nil && !cur.SameTokens(seen) {
			return nil
		}
		if cur.Status != model.StatusConnected {
			return nil
		}
		cur.Status = model.StatusExpired
		cur.LastError = reason
		changed = true
		return cur
	})
	if err != nil {
		return false, err
	}
	if changed {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id":  userID,
			"platform": platform,
			"reason":   reason,
		}).Info("Connection marked expired")
	}
	return changed, nil
}

// Disconnect clears the tokens and leaves a disconnected tombstone row.
func (u *ConnectionUsecase) Disconnect(ctx context.Context, userID string, platform model.Platform) error {
	_, err := u.Update(ctx, userID, platform, func(cur *model.SocialConnection) *model.SocialConnection {
		if cur == nil {
			return nil
		}
		cur.Status = model.StatusDisconnected
		cur.LastError = ""
		return cur
	})
	return err
}

// List returns one view per supported platform, including platforms never connected.
func (u *ConnectionUsecase) List(ctx context.Context, userID string) ([]dto.ConnectionView, error) {
	rows, err := u.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[model.Platform]model.SocialConnection, len(rows))
	for _, r := range rows {
		byPlatform[r.Platform] = r
	}
	now := u.now()
	views := make([]dto.ConnectionView, 0, len(model.Platforms))
	for _, p := range model.Platforms {
		c, ok := byPlatform[p]
		if !ok {
			views = append(views, dto.ConnectionView{Platform: string(p), Status: string(model.StatusDisconnected)})
			continue
		}
		status := c.Status
		// Lazily report a lapsed token as expired; the row itself is fixed by the sweeper or
		// the next publish.
		if status == model.StatusConnected && c.ExpiredAt(now) {
			status = model.StatusExpired
		}
		views = append(views, dto.ConnectionView{
			Platform:       string(p),
			Connected:      status == model.StatusConnected,
			Status:         string(status),
			Username:       c.PlatformUsername,
			ExpiresSoon:    status == model.StatusConnected && c.ExpiresSoon(now),
			TokenExpiresAt: c.TokenExpiresAt,
			LastError:      c.LastError,
		})
	}
	return views, nil
}

// SweepExpired marks lapsed tokens expired and returns authorization_pending rows older than
// pendingTTL to disconnected.
func (u *ConnectionUsecase) SweepExpired(ctx context.Context, now time.Time, pendingTTL time.Duration) (SweepReport, error) {
	var report SweepReport
	lg := logger.GetLogger()

	expiring, err := u.repo.ListExpiring(ctx, now)
	if err != nil {
		return report, err
	}
	for i := range expiring {
		c := expiring[i]
		changed, err := u.MarkExpired(ctx, c.UserID, c.Platform, &c, "token expired")
		if err != nil {
			lg.WithFields(map[string]interface{}{"platform": c.Platform, "error": err}).Warn("Sweep could not expire connection")
			continue
		}
		if changed {
			report.Expired++
		}
	}

	if pendingTTL > 0 {
		stale, err := u.repo.ListStalePending(ctx, now.Add(-pendingTTL))
		if err != nil {
			return report, err
		}
		for _, c := range stale {
			if abandoned, err := u.abandonPending(ctx, c.UserID, c.Platform, c.Version); err != nil {
				lg.WithFields(map[string]interface{}{"platform": c.Platform, "error": err}).Warn("Sweep could not reset pending connection")
			} else if abandoned {
				report.Abandoned++
			}
		}
	}
	if report.Expired > 0 || report.Abandoned > 0 {
		lg.WithFields(map[string]interface{}{"expired": report.Expired, "abandoned": report.Abandoned}).Info("Connection sweep finished")
	}
	return report, nil
}

// AbandonPending returns a connection still waiting on the provider to disconnected. A
// connected row is left untouched.
func (u *ConnectionUsecase) AbandonPending(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	return u.abandonPending(ctx, userID, platform, 0)
}

// abandonPending returns a pending connection to disconnected. A non-zero version restricts it
// to the row the caller saw.
func (u *ConnectionUsecase) abandonPending(ctx context.Context, userID string, platform model.Platform, version int64) (bool, error) {
	changed := false
	_, err := u.Update(ctx, userID, platform, func(cur *model.SocialConnection) *model.SocialConnection {
		changed = false
		if cur == nil || cur.Status != model.StatusAuthorizationPending {
			return nil
		}
		if version != 0 && cur.Version != version {
			return nil
		}
		cur.Status = model.StatusDisconnected
		cur.LastError = ""
		changed = true
		return cur
	})
	return changed, err
}
