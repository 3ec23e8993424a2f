// Package middleware composes named net/http middlewares into a chain.
package middleware

import (
	"encoding/json"
	"net/http"
)

// Middleware wraps an http.Handler. Name identifies it in logs and in
// Chain.Names.
type Middleware interface {
	Name() string
	Wrap(next http.Handler) http.Handler
}

// Chain applies middlewares in the order they were added: the first one
// added sees the request first.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middlewares. Nil entries are
// skipped so optional middlewares can be passed unconditionally.
func NewChain(middlewares ...Middleware) *Chain {
	c := &Chain{}
	for _, m := range middlewares {
		c.Add(m)
	}
	return c
}

// Add appends a middleware to the chain.
func (c *Chain) Add(m Middleware) *Chain {
	if m != nil {
		c.middlewares = append(c.middlewares, m)
	}
	return c
}

// Then wraps h with every middleware in the chain.
func (c *Chain) Then(h http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i].Wrap(h)
	}
	return h
}

// Names lists the middlewares in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.middlewares))
	for i, m := range c.middlewares {
		names[i] = m.Name()
	}
	return names
}

// Len returns the number of middlewares.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Func adapts a plain wrapping function to Middleware.
type Func struct {
	name string
	wrap func(http.Handler) http.Handler
}

// NewFunc returns a named Middleware backed by wrap.
func NewFunc(name string, wrap func(http.Handler) http.Handler) *Func {
	return &Func{name: name, wrap: wrap}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Wrap(next http.Handler) http.Handler { return f.wrap(next) }

// StatusRecorder captures the status code and body size written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int
}

// NewStatusRecorder wraps w. Status defaults to 200 until WriteHeader runs.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
