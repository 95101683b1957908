package dto

import "time"

type ConnectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// ConnectionView is a connection as shown to the UI. Tokens never leave the server.
type ConnectionView struct {
	Platform       string     `json:"platform"`
	Connected      bool       `json:"connected"`
	Status         string     `json:"status"`
	Username       string     `json:"username,omitempty"`
	ExpiresSoon    bool       `json:"expires_soon"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

type SaveCredentialRequest struct {
	OAuthVersion string   `json:"oauth_version" binding:"required"`
	ClientID     string   `json:"client_id" binding:"required"`
	ClientSecret string   `json:"client_secret" binding:"required"`
	CallbackURL  string   `json:"callback_url"`
	Scopes       []string `json:"scopes"`
}

// CredentialView masks secrets. CredentialsLost is set when stored ciphertext no longer decrypts.
type CredentialView struct {
	Platform           string    `json:"platform"`
	OAuthVersion       string    `json:"oauth_version"`
	ClientIDMasked     string    `json:"client_id_masked"`
	ClientSecretMasked string    `json:"client_secret_masked"`
	CallbackURL        string    `json:"callback_url"`
	Scopes             []string  `json:"scopes"`
	CredentialsLost    bool      `json:"credentials_lost"`
	UpdatedAt          time.Time `json:"updated_at"`
	UpdatedBy          string    `json:"updated_by"`
}
