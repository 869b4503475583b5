package publish

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies publish failures into the categories the orchestrator
// and retry policy act on.
type ErrorKind string

// Possible error kinds.
const (
	// KindAuth covers invalid, revoked, or insufficient credentials. Permanent.
	KindAuth ErrorKind = "auth"

	// KindRateLimit covers explicit platform rate-limit signals. Transient.
	KindRateLimit ErrorKind = "rate_limit"

	// KindValidation covers content the platform rejects (bad media, caption
	// too long, unsupported combination). Permanent.
	KindValidation ErrorKind = "validation"

	// KindTransient covers network failures and 5xx responses. Retried.
	KindTransient ErrorKind = "transient"

	// KindConfiguration covers engine-side misconfiguration (unknown
	// api_name, missing credential). Permanent, logged immediately.
	KindConfiguration ErrorKind = "configuration"

	// KindUnknown covers everything else. Treated as permanent.
	KindUnknown ErrorKind = "unknown"
)

// ErrMediaNotReady signals that a platform reported its media container not
// yet ready at publish time even though polling said it was. The async media
// processor retries the publish call on this error with its own small budget,
// separate from the network retry policy.
var ErrMediaNotReady = errors.New("media container not ready")

// Error is the typed error every adapter returns. Kind drives retry and
// attempt classification; Code and Message carry the platform's diagnostic
// payload into the error log.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error (code %s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed publish error.
func NewError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Errors that are not
// publish errors are classified as unknown.
func KindOf(err error) ErrorKind {
	var pubErr *Error
	if errors.As(err, &pubErr) {
		return pubErr.Kind
	}
	return KindUnknown
}

// IsTransient reports whether the error is worth retrying at the network
// layer: transient network failures and rate limits. Everything else,
// including auth and validation failures, is permanent.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimit:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP response status to an ErrorKind following the
// taxonomy shared by all platform APIs: 401/403 auth, 429 rate limit, other
// 4xx validation, 5xx transient.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 400 && status < 500:
		return KindValidation
	case status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}

// StatusError builds a typed error from an HTTP response status and body.
func StatusError(status int, body string, err error) *Error {
	return NewError(
		ClassifyStatus(status),
		fmt.Sprintf("http_%d", status),
		body,
		err,
	)
}
