package model

import "time"

// ConnectionStatus of a per-user, per-platform connection.
type ConnectionStatus string

const (
	StatusDisconnected         ConnectionStatus = "disconnected"
	StatusAuthorizationPending ConnectionStatus = "authorization_pending"
	StatusConnected            ConnectionStatus = "connected"
	StatusExpired              ConnectionStatus = "expired"
	StatusError                ConnectionStatus = "error"
)

// CarriesTokens is true only for connected; every other status holds no credentials.
func (s ConnectionStatus) CarriesTokens() bool { return s == StatusConnected }

// ExpiresSoonWindow flags connections the UI should prompt to refresh.
const ExpiresSoonWindow = 72 * time.Hour

// SocialConnection is the authoritative connection state. Token fields hold vault ciphertext
// and are empty in every status except connected.
type SocialConnection struct {
	ID               int64            `json:"id" db:"id"`
	UserID           string           `json:"user_id" db:"user_id"`
	Platform         Platform         `json:"platform" db:"platform"`
	Status           ConnectionStatus `json:"status" db:"status"`
	AccessToken      string           `json:"-" db:"access_token"`
	RefreshToken     string           `json:"-" db:"refresh_token"`
	TokenSecret      string           `json:"-" db:"token_secret"`
	TokenExpiresAt   *time.Time       `json:"token_expires_at,omitempty" db:"token_expires_at"`
	PlatformUserID   string           `json:"platform_user_id,omitempty" db:"platform_user_id"`
	PlatformUsername string           `json:"platform_username,omitempty" db:"platform_username"`
	LastError        string           `json:"last_error,omitempty" db:"last_error"`
	Version          int64            `json:"version" db:"version"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the connection can be used for API calls at t.
func (c *SocialConnection) Usable(t time.Time) bool {
	return c != nil && c.Status == StatusConnected && c.AccessToken != "" && !c.ExpiredAt(t)
}

// ExpiredAt is true once the token's recorded expiry has passed.
func (c *SocialConnection) ExpiredAt(t time.Time) bool {
	return c.TokenExpiresAt != nil && !t.Before(*c.TokenExpiresAt)
}

func (c *SocialConnection) ExpiresSoon(t time.Time) bool {
	return c.Status == StatusConnected && c.TokenExpiresAt != nil && c.TokenExpiresAt.Sub(t) < ExpiresSoonWindow
}

// ClearTokens drops every credential so non-connected states never carry one.
func (c *SocialConnection) ClearTokens() {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.TokenSecret = ""
	c.TokenExpiresAt = nil
}

// SameTokens compares the stored credential ciphertexts.
func (c *SocialConnection) SameTokens(o *SocialConnection) bool {
	return c.AccessToken == o.AccessToken && c.RefreshToken == o.RefreshToken && c.TokenSecret == o.TokenSecret
}
