package model

import "time"

// OAuthTransaction is the server-side half of an in-flight authorization. It lives in the
// TTL store and is consumed exactly once. Verifier and RequestTokenSecret hold vault ciphertext.
type OAuthTransaction struct {
	ID                 string    `json:"id"`
	Platform           Platform  `json:"platform"`
	UserID             string    `json:"user_id"`
	Flow               FlowKind  `json:"flow"`
	State              string    `json:"state,omitempty"`
	RequestToken       string    `json:"request_token,omitempty"`
	Verifier           string    `json:"verifier,omitempty"`
	RequestTokenSecret string    `json:"request_token_secret,omitempty"`
	RedirectURL        string    `json:"redirect_url"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// Key is the lookup handle the provider echoes back: state for 2.0, oauth_token for 1.0a.
func (t *OAuthTransaction) Key() string {
	if t.Flow == FlowOAuth1a {
		return t.RequestToken
	}
	return t.State
}

func (t *OAuthTransaction) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// CallbackParams are the query parameters a provider redirects back with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	OAuthToken       string
	OAuthVerifier    string
	Denied           string
}

// UserDenied reports whether the user refused the authorization on the provider's page.
// LinkedIn reports a cancel with its own codes.
func (c CallbackParams) UserDenied() bool {
	switch c.Error {
	case "access_denied", "denied", "user_cancelled_login", "user_cancelled_authorize":
		return true
	}
	return c.Denied != ""
}

// ProviderFailure turns any other error callback into a ProviderError. Nil when the
// callback carries no error.
func (c CallbackParams) ProviderFailure(p Platform) *ProviderError {
	if c.Error == "" || c.UserDenied() {
		return nil
	}
	kind := ProviderPermanent
	if c.Error == "server_error" || c.Error == "temporarily_unavailable" {
		kind = ProviderTransient
	}
	msg := c.Error
	if c.ErrorDescription != "" {
		msg += ": " + c.ErrorDescription
	}
	return &ProviderError{Platform: p, Kind: kind, Message: msg}
}
