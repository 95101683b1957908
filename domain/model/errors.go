package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotConfigured       = errors.New("platform not configured")
	ErrInvalidState        = errors.New("invalid or expired oauth state")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrDecryption          = errors.New("decryption failed")
	ErrUserDenied          = errors.New("user denied authorization")
	ErrTimeout             = errors.New("operation timed out")
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrRateLimited         = errors.New("too many requests")
	ErrConflict            = errors.New("concurrent modification")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotConnected        = errors.New("platform not connected")
)

// ProviderErrorKind drives retry decisions.
type ProviderErrorKind string

const (
	ProviderTransient   ProviderErrorKind = "transient"
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	ProviderAuth        ProviderErrorKind = "auth"
	ProviderPermanent   ProviderErrorKind = "permanent"
)

// ProviderError is a failure reported by a remote platform API.
type ProviderError struct {
	Platform   Platform
	StatusCode int
	Kind       ProviderErrorKind
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (%d %s): %s", e.Platform, e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Platform, e.Kind, e.Message)
}

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool { return e.Kind == ProviderTransient }

// NewProviderError classifies an HTTP status into a ProviderError.
func NewProviderError(platform Platform, status int, message string) *ProviderError {
	return &ProviderError{Platform: platform, StatusCode: status, Kind: KindForStatus(status), Message: message}
}

func KindForStatus(status int) ProviderErrorKind {
	switch {
	case status == 429:
		return ProviderRateLimited
	case status == 401 || status == 403:
		return ProviderAuth
	case status == 408 || status >= 500 || status == 0:
		return ProviderTransient
	default:
		return ProviderPermanent
	}
}

// PlatformError scopes any failure to the platform it happened on.
type PlatformError struct {
	Platform Platform
	Err      error
}

func (e *PlatformError) Error() string { return fmt.Sprintf("%s: %v", e.Platform, e.Err) }
func (e *PlatformError) Unwrap() error { return e.Err }

func WithPlatform(p Platform, err error) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) && pe.Platform == p {
		return err
	}
	return &PlatformError{Platform: p, Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// IsAuthFailure is true for 401 responses, which mean the stored token is no longer valid.
func IsAuthFailure(err error) bool {
	if errors.Is(err, ErrInvalidToken) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == 401
}

// ErrorCode is the short machine code surfaced to the UI (callback redirects, publish results).
func ErrorCode(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserDenied):
		return "user_denied"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrDecryption):
		return "credentials_lost"
	case errors.Is(err, ErrInvalidToken):
		return "expired"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "unsupported_platform"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.As(err, &pe):
		if pe.Kind == ProviderRateLimited {
			return "rate_limited"
		}
		return "provider_error"
	}
	return "internal_error"
}

// UserMessage maps a failure to a short actionable sentence. Raw provider bodies never appear here.
// An empty platform yields wording that names no platform.
func UserMessage(p Platform, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "Some fields are missing or invalid. Please check them and try again"
	case errors.Is(err, ErrNotFound):
		return "We couldn't find what you asked for. It may have been deleted"
	case errors.Is(err, ErrConflict):
		return "Someone else changed this at the same time. Please refresh and try again"
	}
	if p == "" {
		return neutralMessage(err)
	}
	name := p.DisplayName()
	var pe *ProviderError
	switch {
	case errors.Is(err, ErrUserDenied):
		return fmt.Sprintf("You cancelled the %s authorization", name)
	case errors.Is(err, ErrInvalidState):
		return fmt.Sprintf("The %s authorization link expired or was already used. Please try connecting again", name)
	case errors.Is(err, ErrNotConfigured):
		return fmt.Sprintf("%s is not configured on this server", name)
	case errors.Is(err, ErrDecryption):
		return fmt.Sprintf("Stored %s credentials can no longer be read. Please re-enter them", name)
	case errors.Is(err, ErrInvalidToken):
		return fmt.Sprintf("Your %s authorization expired. Please reconnect", name)
	case errors.Is(err, ErrRateLimited):
		return fmt.Sprintf("Too many %s requests. Please wait a minute and try again", name)
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s did not respond in time. Please try again", name)
	case errors.Is(err, ErrUnsupportedPlatform):
		return fmt.Sprintf("%s is not a supported platform", name)
	case errors.Is(err, ErrNotConnected):
		return fmt.Sprintf("Your %s account is not connected", name)
	case errors.As(err, &pe):
		switch pe.Kind {
		case ProviderRateLimited:
			return fmt.Sprintf("%s is rate limiting requests. Please try again later", name)
		case ProviderAuth:
			return fmt.Sprintf("%s rejected the stored authorization. Please reconnect", name)
		case ProviderTransient:
			return fmt.Sprintf("%s is temporarily unavailable. Please try again", name)
		}
		return fmt.Sprintf("%s rejected the request", name)
	}
	return fmt.Sprintf("Something went wrong with %s. Please try again", name)
}

func neutralMessage(err error) string {
	var pe *ProviderError
	switch {
	case errors.Is(err, ErrUserDenied):
		return "You cancelled the authorization"
	case errors.Is(err, ErrInvalidState):
		return "The authorization link expired or was already used. Please try connecting again"
	case errors.Is(err, ErrNotConfigured):
		return "This platform is not configured on this server"
	case errors.Is(err, ErrDecryption):
		return "Stored credentials can no longer be read. Please re-enter them"
	case errors.Is(err, ErrInvalidToken):
		return "Your authorization expired. Please reconnect"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait a minute and try again"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "The request took too long. Please try again"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "That platform is not supported"
	case errors.Is(err, ErrNotConnected):
		return "That account is not connected"
	case errors.As(err, &pe):
		return "The platform rejected the request. Please try again later"
	}
	return "Something went wrong. Please try again"
}
