// Package autherr defines the closed set of errors raised by the
// authentication pipeline. Every step either returns one of these kinds or
// lets a transport error pass through untouched; the middleware is the only
// place that turns them into HTTP responses.
package autherr

import (
	"errors"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindAuthentication covers missing, malformed, invalid or expired
	// credentials. Surfaced as 401.
	KindAuthentication Kind = iota + 1
	// KindAuthorization covers a caller that is not allowed to act as the
	// requested account, or whose profile lookup was denied. Surfaced as 403.
	KindAuthorization
	// KindConfiguration covers broken setup and malformed upstream
	// responses. Not the caller's fault; surfaced as 500.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "UnknownError"
	}
}

// DefaultStatus returns the HTTP status used for k when none is set.
func (k Kind) DefaultStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline error. Message is safe to return to the
// caller; Err (if any) is kept for logs only.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Authentication returns a KindAuthentication error with status 401.
func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Status: KindAuthentication.DefaultStatus(), Message: msg}
}

// Authorization returns a KindAuthorization error with status 403.
func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Status: KindAuthorization.DefaultStatus(), Message: msg}
}

// Configuration returns a KindConfiguration error.
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Status: KindConfiguration.DefaultStatus(), Message: msg}
}

// Wrap returns a classified error of the given kind carrying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: kind.DefaultStatus(), Message: msg, Err: cause}
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err, or false when err is unclassified.
func KindOf(err error) (Kind, bool) {
	if ae, ok := As(err); ok {
		return ae.Kind, true
	}
	return 0, false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
