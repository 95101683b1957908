package model

import (
	"fmt"
	"strings"
)

// Platform is a publish target with its own OAuth provider.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformThreads   Platform = "threads"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformTwitter, PlatformLinkedIn, PlatformThreads, PlatformInstagram}

func (p Platform) String() string { return string(p) }

// DisplayName is the human form used in user-facing messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformTwitter:
		return "Twitter"
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformThreads:
		return "Threads"
	case PlatformInstagram:
		return "Instagram"
	}
	return string(p)
}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform normalises user input ("X" and "x" are accepted for twitter).
func ParsePlatform(s string) (Platform, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "x" {
		v = string(PlatformTwitter)
	}
	p := Platform(v)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
	}
	return p, nil
}

// OAuthVersion as configured on the app credential.
type OAuthVersion string

const (
	OAuthVersion1a OAuthVersion = "1.0a"
	OAuthVersion2  OAuthVersion = "2.0"
)

func (v OAuthVersion) Valid() bool { return v == OAuthVersion1a || v == OAuthVersion2 }

// FlowKind is the closed set of authorization flow variants.
type FlowKind string

const (
	FlowOAuth1a    FlowKind = "oauth1a"
	FlowOAuth2     FlowKind = "oauth2"
	FlowOAuth2PKCE FlowKind = "oauth2_pkce"
)

// ProviderSpec holds the static endpoints and defaults of a platform's OAuth provider.
type ProviderSpec struct {
	Platform         Platform
	SupportsOAuth1a  bool
	PKCE             bool
	AuthURL          string
	TokenURL         string
	RequestTokenURL  string
	AuthorizeURL1a   string
	AccessTokenURL   string
	ProfileURL       string
	DefaultScopes    []string
	ScopeSeparator   string
	ClientAuthHeader bool
}

// FlowFor picks the variant once per platform from the static spec and the configured version.
func (s ProviderSpec) FlowFor(version OAuthVersion) (FlowKind, error) {
	if version == OAuthVersion1a {
		if !s.SupportsOAuth1a {
			return "", fmt.Errorf("%w: %s does not support OAuth 1.0a", ErrNotConfigured, s.Platform)
		}
		return FlowOAuth1a, nil
	}
	if s.PKCE {
		return FlowOAuth2PKCE, nil
	}
	return FlowOAuth2, nil
}

// DefaultProviders is the static provider table. Endpoints may be overridden from configuration.
func DefaultProviders() map[Platform]ProviderSpec {
	return map[Platform]ProviderSpec{
		PlatformTwitter: {
			Platform:         PlatformTwitter,
			SupportsOAuth1a:  true,
			PKCE:             true,
			AuthURL:          "https://twitter.com/i/oauth2/authorize",
			TokenURL:         "https://api.twitter.com/2/oauth2/token",
			RequestTokenURL:  "https://api.twitter.com/oauth/request_token",
			AuthorizeURL1a:   "https://api.twitter.com/oauth/authorize",
			AccessTokenURL:   "https://api.twitter.com/oauth/access_token",
			ProfileURL:       "https://api.twitter.com/2/users/me",
			DefaultScopes:    []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			ScopeSeparator:   " ",
			ClientAuthHeader: true,
		},
		PlatformLinkedIn: {
			Platform:       PlatformLinkedIn,
			AuthURL:        "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:       "https://www.linkedin.com/oauth/v2/accessToken",
			ProfileURL:     "https://api.linkedin.com/v2/userinfo",
			DefaultScopes:  []string{"openid", "profile", "w_member_social"},
			ScopeSeparator: " ",
		},
		PlatformThreads: {
			Platform:       PlatformThreads,
			AuthURL:        "https://threads.net/oauth/authorize",
			TokenURL:       "https://graph.threads.net/oauth/access_token",
			ProfileURL:     "https://graph.threads.net/v1.0/me?fields=id,username",
			DefaultScopes:  []string{"threads_basic", "threads_content_publish"},
			ScopeSeparator: ",",
		},
		PlatformInstagram: {
			Platform:       PlatformInstagram,
			AuthURL:        "https://www.instagram.com/oauth/authorize",
			TokenURL:       "https://api.instagram.com/oauth/access_token",
			ProfileURL:     "https://graph.instagram.com/me?fields=user_id,username",
			DefaultScopes:  []string{"instagram_business_basic", "instagram_business_content_publish"},
			ScopeSeparator: ",",
		},
	}
}
