package errorhandler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/sweetpotato0/agentgate/middleware"
	"github.com/sweetpotato0/agentgate/pkg/logging"
)

// ErrorHandlerFunc is notified of a recovered panic before the 500 is written
type ErrorHandlerFunc func(r *http.Request, err error)

// ErrorHandler recovers panics raised by downstream handlers and answers
// with a JSON 500.
type ErrorHandler struct {
	handler ErrorHandlerFunc
	logger  *slog.Logger
}

// NewErrorHandler creates an error handling middleware. handler may be nil.
func NewErrorHandler(handler ErrorHandlerFunc, logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = logging.WithComponent("http")
	}
	return &ErrorHandler{handler: handler, logger: logger}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Wrap installs the recovery around next.
func (m *ErrorHandler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			m.logger.Error("handler panic",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
				"stack", string(debug.Stack()),
			)
			if m.handler != nil {
				m.handler(r, err)
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternal.Error())
		}()
		next.ServeHTTP(w, r)
	})
}
