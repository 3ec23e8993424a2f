package enricher

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// RequestIDFunc generates a request id when the client sent none
type RequestIDFunc func() string

// RequestID tags every request with an id, taken from X-Request-ID when
// present, stores it in the request context and echoes it in the response.
type RequestID struct {
	generate RequestIDFunc
}

// NewRequestID creates a request id middleware. A nil generate uses uuids.
func NewRequestID(generate RequestIDFunc) *RequestID {
	if generate == nil {
		generate = uuid.NewString
	}
	return &RequestID{generate: generate}
}

// Name returns the middleware name
func (m *RequestID) Name() string {
	return "RequestID"
}

// Wrap enriches the request context with the id.
func (m *RequestID) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = m.generate()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
