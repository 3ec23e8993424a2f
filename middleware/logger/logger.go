package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sweetpotato0/agentgate/middleware"
	"github.com/sweetpotato0/agentgate/middleware/enricher"
	"github.com/sweetpotato0/agentgate/pkg/logging"
)

// RequestLogger logs one line per request with its status and duration.
// 5xx responses are logged at error level and 4xx at warn. Place it after
// enricher.RequestID to get the request id on each line.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.WithComponent("http")
	}
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Wrap logs the request after next has written its response.
func (m *RequestLogger) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.Status >= 500:
			level = slog.LevelError
		case rec.Status >= 400:
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.Status),
			slog.Int("bytes", rec.Bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote", r.RemoteAddr),
		}
		if id := enricher.FromContext(r.Context()); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		m.logger.LogAttrs(r.Context(), level, "http request", attrs...)
	})
}
