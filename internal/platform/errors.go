package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so callers can render actionable
// guidance (re-authorize vs. contact support) without parsing messages
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "invalid_input"
	KindInvalidTargeting     ErrorKind = "invalid_targeting"
	KindInvalidConfiguration ErrorKind = "invalid_configuration"
	KindAuth                 ErrorKind = "auth_error"
	KindPermission           ErrorKind = "permission_error"
	KindNoCredential         ErrorKind = "no_credential"
	KindUnsupportedContent   ErrorKind = "unsupported_content"
	KindUploadIncomplete     ErrorKind = "upload_incomplete"
	KindOverloaded           ErrorKind = "overloaded"
	KindQuotaExceeded        ErrorKind = "quota_exceeded"
	KindTimeout              ErrorKind = "timeout"
	KindCancelled            ErrorKind = "cancelled"
	KindPlatform             ErrorKind = "platform_error"
)

// Error is a classified failure from a platform operation
type Error struct {
	Kind     ErrorKind
	Platform Platform
	Message  string
}

func (e *Error) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a classified platform error
func NewError(p Platform, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Platform: p, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from an error. Context errors map
// to Timeout/Cancelled; anything else unclassified is a PlatformError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindPlatform
}

// Retryable reports whether a caller-level retry could succeed
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindOverloaded, KindTimeout, KindPlatform:
		return true
	}
	return false
}

// ClassifyRemote classifies a non-2xx platform response by keyword
// matching on the error message. Platforms do not guarantee stable
// error codes, so the message text is the only classification input.
func ClassifyRemote(p Platform, status int, message string) *Error {
	kind := KindPlatform
	lower := strings.ToLower(message)

	switch {
	case status == 401,
		strings.Contains(lower, "access token"),
		strings.Contains(lower, "token is invalid"),
		strings.Contains(lower, "token has expired"),
		strings.Contains(lower, "session has expired"),
		strings.Contains(lower, "oauth"),
		strings.Contains(lower, "invalid_token"),
		strings.Contains(lower, "expired_token"),
		strings.Contains(lower, "revoked"):
		kind = KindAuth
	case status == 403,
		strings.Contains(lower, "permission"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "unauthorized scope"),
		strings.Contains(lower, "insufficient"),
		strings.Contains(lower, "requires extended permission"):
		kind = KindPermission
	case status == 429,
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many calls"):
		kind = KindQuotaExceeded
	case status == 503,
		strings.Contains(lower, "temporarily unavailable"),
		strings.Contains(lower, "service unavailable"):
		kind = KindOverloaded
	}

	return &Error{Kind: kind, Platform: p, Message: message}
}
