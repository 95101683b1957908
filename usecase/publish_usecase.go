package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/larry311012/ai-news-hub-sub002/domain/dto"
	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

const EventPublishCompleted = "publish.completed"

// IPublishUsecase stores posts and publishes them to connected platforms.
type IPublishUsecase interface {
	CreatePost(ctx context.Context, userID string, req dto.CreatePostRequest) (*model.Post, error)
	GetPost(ctx context.Context, userID, postID string) (*model.Post, error)
	// Publish always returns a per-platform result; only input errors fail the call.
	Publish(ctx context.Context, userID, postID string, platforms []model.Platform) (*model.PublishResult, error)
	Status(ctx context.Context, userID, postID string) ([]model.PublishRecord, error)
	History(ctx context.Context, userID, postID string, limit int64) ([]model.PublishAudit, error)
}

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	Broadcast(evt model.PublishEvent)
}

type PublishOptions struct {
	MaxRetries  int
	Backoff     time.Duration
	CallTimeout time.Duration
	EventTopic  string
}

type PublishUsecase struct {
	posts      repository.IPost
	records    repository.IPublishRecord
	audits     repository.IPublishAudit
	conns      IConnectionUsecase
	oauth      IOAuthUsecase
	creds      ICredentialUsecase
	vault      repository.IVault
	publishers map[model.Platform]repository.IPlatformPublisher
	events     repository.IEventPublisher
	hub        Broadcaster
	opts       PublishOptions
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewPublishUsecase(
	posts repository.IPost,
	records repository.IPublishRecord,
	audits repository.IPublishAudit,
	conns IConnectionUsecase,
	oauth IOAuthUsecase,
	creds ICredentialUsecase,
	vault repository.IVault,
	publishers map[model.Platform]repository.IPlatformPublisher,
	opts PublishOptions,
) *PublishUsecase {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.EventTopic == "" {
		opts.EventTopic = "publish-events"
	}
	return &PublishUsecase{
		posts:      posts,
		records:    records,
		audits:     audits,
		conns:      conns,
		oauth:      oauth,
		creds:      creds,
		vault:      vault,
		publishers: publishers,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// WithEvents emits a domain event after every publish.
func (u *PublishUsecase) WithEvents(events repository.IEventPublisher) *PublishUsecase {
	u.events = events
	return u
}

// WithBroadcaster pushes results to SSE subscribers.
func (u *PublishUsecase) WithBroadcaster(hub Broadcaster) *PublishUsecase {
	u.hub = hub
	return u
}

func (u *PublishUsecase) CreatePost(ctx context.Context, userID string, req dto.CreatePostRequest) (*model.Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", model.ErrInvalidInput)
	}
	post := &model.Post{
		ID:       uuid.NewString(),
		UserID:   userID,
		Content:  content,
		ImageURL: strings.TrimSpace(req.ImageURL),
		LinkURL:  strings.TrimSpace(req.LinkURL),
	}
	if err := u.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (u *PublishUsecase) GetPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	post, err := u.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, fmt.Errorf("post %s: %w", postID, model.ErrNotFound)
	}
	return post, nil
}

func (u *PublishUsecase) Publish(ctx context.Context, userID, postID string, platforms []model.Platform) (*model.PublishResult, error) {
	targets, err := u.targets(platforms)
	if err != nil {
		return nil, err
	}
	post, err := u.GetPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	content := model.PublishContent{Text: post.Content, ImageURL: post.ImageURL, LinkURL: post.LinkURL}

	// One goroutine per platform, each writing only its own slot.
	results := make([]model.PlatformResult, len(targets))
	var g errgroup.Group
	for i, p := range targets {
		g.Go(func() error {
			results[i] = u.publishOne(ctx, userID, p, content)
			return nil
		})
	}
	_ = g.Wait()

	result := &model.PublishResult{PostID: postID, Results: results}
	u.record(ctx, userID, result)
	logger.GetLogger().WithFields(map[string]interface{}{
		"post_id":   postID,
		"user_id":   userID,
		"targets":   len(targets),
		"succeeded": result.Succeeded(),
	}).Info("Publish finished")
	return result, nil
}

// targets validates and de-duplicates the requested platforms.
func (u *PublishUsecase) targets(platforms []model.Platform) ([]model.Platform, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", model.ErrInvalidInput)
	}
	seen := make(map[model.Platform]bool, len(platforms))
	out := make([]model.Platform, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := u.publishers[p]; !ok || !p.Valid() {
			return nil, model.WithPlatform(p, model.ErrUnsupportedPlatform)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func (u *PublishUsecase) publishOne(ctx context.Context, userID string, platform model.Platform, content model.PublishContent) model.PlatformResult {
	res := model.PlatformResult{Platform: platform, Outcome: model.OutcomeFailed}
	lg := logger.GetLogger().WithFields(map[string]interface{}{"platform": platform, "user_id": userID})

	conn, err := u.conns.Get(ctx, userID, platform)
	if err != nil {
		lg.WithField("error", err.Error()).Error("Could not load connection")
		return failed(res, err, "")
	}
	conn, reason := u.usableConnection(ctx, conn)
	if reason != "" {
		return failed(res, reasonError(reason), reason)
	}

	creds, err := u.credentials(ctx, conn)
	if err != nil {
		lg.WithField("error", err.Error()).Warn("Stored tokens could not be used")
		if errors.Is(err, model.ErrDecryption) {
			return failed(res, err, model.ReasonCredentialsLost)
		}
		return failed(res, err, "")
	}

	publisher := u.publishers[platform]
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		callCtx, cancel := context.WithTimeout(ctx, u.opts.CallTimeout)
		url, err := publisher.Publish(callCtx, creds, content)
		cancel()
		if err == nil {
			res.Outcome = model.OutcomeSuccess
			res.URL = url
			return res
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%s: %w", platform, model.ErrTimeout)
		}
		if model.IsAuthFailure(err) {
			if _, merr := u.conns.MarkExpired(ctx, userID, platform, conn, "rejected by "+platform.DisplayName()); merr != nil {
				lg.WithField("error", merr.Error()).Error("Could not mark connection expired")
			}
			return failed(res, err, model.ReasonExpired)
		}
		if !model.IsTransient(err) || attempt > u.opts.MaxRetries {
			lg.WithFields(map[string]interface{}{"attempt": attempt, "error": err.Error()}).Warn("Publish failed")
			return failed(res, err, "")
		}
		delay := u.opts.Backoff << (attempt - 1)
		lg.WithFields(map[string]interface{}{"attempt": attempt, "retry_in": delay.String()}).Info("Transient publish failure, retrying")
		if err := u.sleep(ctx, delay); err != nil {
			return failed(res, err, "")
		}
	}
}

// usableConnection returns a connection ready for API calls, refreshing a lapsed OAuth 2.0
// token once. The reason is set when the platform cannot be used.
func (u *PublishUsecase) usableConnection(ctx context.Context, conn *model.SocialConnection) (*model.SocialConnection, string) {
	if conn == nil {
		return nil, model.ReasonNotConnected
	}
	switch conn.Status {
	case model.StatusConnected:
	case model.StatusExpired:
		return nil, model.ReasonExpired
	default:
		return nil, model.ReasonNotConnected
	}
	if !conn.ExpiredAt(u.now()) {
		return conn, ""
	}
	if u.oauth != nil && conn.RefreshToken != "" {
		refreshed, err := u.oauth.Refresh(ctx, conn)
		if err == nil && refreshed.Usable(u.now()) {
			return refreshed, ""
		}
		if err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{"platform": conn.Platform, "error": err.Error()}).Warn("Token refresh failed")
		}
	}
	if _, err := u.conns.MarkExpired(ctx, conn.UserID, conn.Platform, conn, "token expired"); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{"platform": conn.Platform, "error": err.Error()}).Error("Could not mark connection expired")
	}
	return nil, model.ReasonExpired
}

// credentials decrypts the connection's tokens. OAuth 1.0a connections also need the app's
// consumer pair to sign requests.
func (u *PublishUsecase) credentials(ctx context.Context, conn *model.SocialConnection) (model.PlatformCredentials, error) {
	creds := model.PlatformCredentials{PlatformUserID: conn.PlatformUserID}
	var err error
	if creds.AccessToken, err = u.vault.Decrypt(conn.AccessToken); err != nil {
		return creds, model.WithPlatform(conn.Platform, err)
	}
	if conn.TokenSecret == "" {
		return creds, nil
	}
	if creds.TokenSecret, err = u.vault.Decrypt(conn.TokenSecret); err != nil {
		return creds, model.WithPlatform(conn.Platform, err)
	}
	keys, err := u.creds.AppKeys(ctx, conn.Platform)
	if err != nil {
		return creds, err
	}
	creds.ConsumerKey, creds.ConsumerSecret = keys.ClientID, keys.ClientSecret
	return creds, nil
}

// record persists outcomes and notifies listeners. None of it can change the result.
func (u *PublishUsecase) record(ctx context.Context, userID string, result *model.PublishResult) {
	lg := logger.GetLogger().WithField("post_id", result.PostID)
	now := u.now().UTC()
	audits := make([]model.PublishAudit, 0, len(result.Results))
	for _, r := range result.Results {
		rec := &model.PublishRecord{
			PostID:       result.PostID,
			Platform:     r.Platform,
			UserID:       userID,
			Outcome:      r.Outcome,
			AttemptCount: r.Attempts,
		}
		if r.URL != "" {
			url := r.URL
			rec.ExternalURL = &url
		}
		if r.Error != "" {
			msg := r.Error
			rec.ErrorMessage = &msg
		}
		if err := u.records.Upsert(ctx, rec); err != nil {
			lg.WithFields(map[string]interface{}{"platform": r.Platform, "error": err.Error()}).Error("Could not save publish record")
		}
		audits = append(audits, model.PublishAudit{
			PostID:       result.PostID,
			Platform:     r.Platform,
			UserID:       userID,
			Outcome:      r.Outcome,
			Reason:       r.Reason,
			ErrorMessage: r.Error,
			ExternalURL:  r.URL,
			Attempts:     r.Attempts,
			CreatedAt:    now,
		})
	}
	if u.audits != nil {
		if err := u.audits.Append(ctx, audits); err != nil {
			lg.WithField("error", err.Error()).Error("Could not append publish audit")
		}
	}

	evt := model.PublishEvent{Type: EventPublishCompleted, UserID: userID, PostID: result.PostID, Result: result.Results, At: now}
	if u.hub != nil {
		u.hub.Broadcast(evt)
	}
	if u.events != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return
		}
		evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if id, err := u.events.Publish(evCtx, u.opts.EventTopic, payload); err != nil {
			lg.WithField("error", err.Error()).Warn("Could not emit publish event")
		} else {
			lg.WithField("message_id", id).Debug("Publish event emitted")
		}
	}
}

func (u *PublishUsecase) Status(ctx context.Context, userID, postID string) ([]model.PublishRecord, error) {
	if _, err := u.GetPost(ctx, userID, postID); err != nil {
		return nil, err
	}
	return u.records.ListByPost(ctx, userID, postID)
}

func (u *PublishUsecase) History(ctx context.Context, userID, postID string, limit int64) ([]model.PublishAudit, error) {
	if _, err := u.GetPost(ctx, userID, postID); err != nil {
		return nil, err
	}
	if u.audits == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.audits.ListByPost(ctx, postID, limit)
}

func failed(res model.PlatformResult, err error, reason string) model.PlatformResult {
	res.Outcome = model.OutcomeFailed
	res.Error = model.UserMessage(res.Platform, err)
	res.Reason = reason
	if res.Reason == "" {
		res.Reason = model.ErrorCode(err)
	}
	return res
}

func reasonError(reason string) error {
	switch reason {
	case model.ReasonExpired:
		return model.ErrInvalidToken
	case model.ReasonNotConnected:
		return model.ErrNotConnected
	}
	return errors.New(reason)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
