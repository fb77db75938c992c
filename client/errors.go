package client

import (
	"fmt"
	"time"
)

// ErrorKind is the closed set of API failure classes.
type ErrorKind int

const (
	// ErrValidation covers 4xx responses caused by bad input.
	ErrValidation ErrorKind = iota
	// ErrUnauthorized covers authentication and authorization failures,
	// including a failed refresh.
	ErrUnauthorized
	// ErrRateLimited covers 429 responses. RetryAfter holds the server's
	// cooldown when it sent one.
	ErrRateLimited
	// ErrNetworkFailure covers transport errors. The underlying error is
	// preserved unmodified via Unwrap.
	ErrNetworkFailure
	// ErrServerError covers 5xx responses.
	ErrServerError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrValidation:
		return "validation"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrRateLimited:
		return "rate_limited"
	case ErrNetworkFailure:
		return "network_failure"
	case ErrServerError:
		return "server_error"
	}
	return "unknown"
}

// APIError is the only error type returned by [Client] calls.
type APIError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == kind
}
