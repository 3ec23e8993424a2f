package middleware

import "errors"

var (
	// ErrRateLimitExceeded is reported to clients that exceed their request rate
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInternal is reported when a handler panics
	ErrInternal = errors.New("internal server error")
)
