package validator

import (
	"mime"
	"net/http"

	"github.com/sweetpotato0/agentgate/middleware"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is given.
const DefaultMaxBodyBytes = 1 << 20

// InputValidator rejects request bodies that are not JSON and caps their
// size. Requests without a body pass through untouched.
type InputValidator struct {
	maxBytes int64
}

// NewInputValidator creates an input validation middleware
func NewInputValidator(maxBytes int64) *InputValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return &InputValidator{maxBytes: maxBytes}
}

// Name returns the middleware name
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Wrap validates the request before calling next.
func (m *InputValidator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.maxBytes {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil || mt != "application/json" {
				middleware.WriteError(w, http.StatusUnsupportedMediaType, "request body must be application/json")
				return
			}
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes)
		next.ServeHTTP(w, r)
	})
}
