package client

import (
	"errors"
	"fmt"

	"github.com/algoroom/algoroom/internal/database/types/enum"
)

// ErrorKind classifies platform API failures. The updater branches on this to
// decide whether an identity may be invalidated: only KindUsernameNotFound
// ever does, everything else leaves the identity untouched.
type ErrorKind int

const (
	// KindUsernameNotFound means the platform confirmed the username does not exist.
	KindUsernameNotFound ErrorKind = iota
	// KindRateLimited means the platform rejected the call for quota reasons.
	KindRateLimited
	// KindTransient covers network errors, timeouts and 5xx responses.
	KindTransient
	// KindInvalidResponse means the platform answered with an unparseable body.
	KindInvalidResponse
)

// String returns the wire name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUsernameNotFound:
		return "USERNAME_NOT_FOUND"
	case KindRateLimited:
		return "RATE_LIMIT"
	case KindInvalidResponse:
		return "INVALID_RESPONSE"
	default:
		return "API_ERROR"
	}
}

// Error is a classified platform API failure.
type Error struct {
	Platform   enum.Platform
	Kind       ErrorKind
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Platform, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
}

func newError(platform enum.Platform, kind ErrorKind, statusCode int, message string) *Error {
	return &Error{
		Platform:   platform,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
	}
}

// KindOf extracts the error kind. Errors not produced by a platform client,
// such as raw transport failures, count as transient.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsUsernameNotFound reports whether the platform confirmed non-existence.
func IsUsernameNotFound(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindUsernameNotFound
}

// IsRateLimited reports whether the platform rejected the call for quota reasons.
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindRateLimited
}
