package model

import "time"

// Post is the minimal record publish needs to resolve a post_id.
type Post struct {
	ID        string    `json:"post_id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	ImageURL  string    `json:"image_url,omitempty" db:"image_url"`
	LinkURL   string    `json:"link_url,omitempty" db:"link_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type PublishOutcome string

const (
	OutcomeSuccess PublishOutcome = "success"
	OutcomeFailed  PublishOutcome = "failed"
)

// Failure reasons that do not come from a provider call.
const (
	ReasonNotConnected    = "not_connected"
	ReasonExpired         = "expired"
	ReasonCredentialsLost = "credentials_lost"
)

// PlatformResult is one platform's independent outcome.
type PlatformResult struct {
	Platform Platform       `json:"platform"`
	Outcome  PublishOutcome `json:"outcome"`
	URL      string         `json:"url,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Attempts int            `json:"attempts"`
}

type PublishResult struct {
	PostID  string           `json:"post_id"`
	Results []PlatformResult `json:"results"`
}

// Succeeded counts the platforms that published.
func (r *PublishResult) Succeeded() int {
	n := 0
	for _, pr := range r.Results {
		if pr.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// PublishRecord is the latest state per (post, platform, user).
type PublishRecord struct {
	ID           int64          `json:"id" db:"id"`
	PostID       string         `json:"post_id" db:"post_id"`
	Platform     Platform       `json:"platform" db:"platform"`
	UserID       string         `json:"user_id" db:"user_id"`
	Outcome      PublishOutcome `json:"outcome" db:"outcome"`
	ExternalURL  *string        `json:"external_url,omitempty" db:"external_url"`
	ErrorMessage *string        `json:"error_message,omitempty" db:"error_message"`
	AttemptCount int            `json:"attempt_count" db:"attempt_count"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// PublishAudit is an append-only log of publish attempts.
type PublishAudit struct {
	PostID       string         `json:"post_id" bson:"post_id" db:"post_id"`
	Platform     Platform       `json:"platform" bson:"platform" db:"platform"`
	UserID       string         `json:"user_id" bson:"user_id" db:"user_id"`
	Outcome      PublishOutcome `json:"outcome" bson:"outcome" db:"outcome"`
	Reason       string         `json:"reason,omitempty" bson:"reason,omitempty" db:"reason"`
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message"`
	ExternalURL  string         `json:"external_url,omitempty" bson:"external_url,omitempty" db:"external_url"`
	Attempts     int            `json:"attempts" bson:"attempts" db:"attempts"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at" db:"created_at"`
}

// PublishEvent is the payload emitted on the event bus and the SSE stream.
type PublishEvent struct {
	Type   string           `json:"type"`
	UserID string           `json:"user_id"`
	PostID string           `json:"post_id"`
	Result []PlatformResult `json:"results"`
	At     time.Time        `json:"at"`
}

// PublishContent is what an adapter sends to its platform.
type PublishContent struct {
	Text     string
	ImageURL string
	LinkURL  string
}

// PlatformCredentials are decrypted per-call credentials. ConsumerKey and ConsumerSecret are
// only set for OAuth 1.0a connections, which sign every request.
type PlatformCredentials struct {
	AccessToken    string
	TokenSecret    string
	PlatformUserID string
	ConsumerKey    string
	ConsumerSecret string
}

// Profile identifies the account an authorization was granted for.
type Profile struct {
	ID       string
	Username string
}
