package model

import "time"

// OAuthAppCredential is the deployment's registered app on a platform. ClientID and
// ClientSecret hold vault ciphertext.
type OAuthAppCredential struct {
	Platform     Platform     `json:"platform"`
	OAuthVersion OAuthVersion `json:"oauth_version"`
	ClientID     string       `json:"-"`
	ClientSecret string       `json:"-"`
	CallbackURL  string       `json:"callback_url"`
	Scopes       []string     `json:"scopes"`
	UpdatedAt    time.Time    `json:"updated_at"`
	UpdatedBy    string       `json:"updated_by"`
}

// AppKeys is the decrypted form used while driving a flow. Never persisted or logged.
type AppKeys struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
	Version      OAuthVersion
}
