// Package server exposes the session gateway over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/sweetpotato0/agentgate/chatlog"
	"github.com/sweetpotato0/agentgate/middleware"
	"github.com/sweetpotato0/agentgate/middleware/enricher"
	"github.com/sweetpotato0/agentgate/middleware/errorhandler"
	"github.com/sweetpotato0/agentgate/middleware/limiter"
	"github.com/sweetpotato0/agentgate/middleware/logger"
	"github.com/sweetpotato0/agentgate/middleware/validator"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Sessions is the part of session.Manager the handlers use.
type Sessions interface {
	Admit(ctx context.Context, id string) (session.Admission, error)
	Start(ctx context.Context, id string) (session.Admission, error)
	Touch(id string) bool
	ActiveSessions() []string
	Queued() []session.QueueEntry
	Stats() session.Stats
}

// Prompts renders the per-message prompt sent to the agent.
type Prompts interface {
	ChatPrompt(userMessage string) (string, error)
}

// Config holds the HTTP settings.
type Config struct {
	Addr            string
	MaxMessageChars int
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	// WriteTimeout bounds a whole chat request, agent run included.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the settings used for zero fields.
func DefaultConfig() Config {
	return Config{
		Addr:            ":3000",
		MaxMessageChars: 5000,
		CORSOrigins:     []string{"*"},
		MaxBodyBytes:    validator.DefaultMaxBodyBytes,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    2 * time.Minute,
		IdleTimeout:     60 * time.Second,
	}
}

// Server serves the gateway API.
type Server struct {
	cfg      Config
	sessions Sessions
	prompts  Prompts
	chats    *chatlog.Logger
	logger   *slog.Logger
	now      func() time.Time

	handler http.Handler
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithChatLog sets the transcript writer. The default only mirrors entries
// to the process logger.
func WithChatLog(l *chatlog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.chats = l
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock used for reply timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the server and its handler chain.
func New(cfg Config, sessions Sessions, prompts Prompts, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = def.MaxMessageChars
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = def.CORSOrigins
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		prompts:  prompts,
		logger:   logging.WithComponent("server"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chats == nil {
		s.chats = chatlog.New(nil)
	}

	s.handler = otelhttp.NewHandler(s.middlewares().Then(s.routes()), "agentgate",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/start-chat", s.handleStartChat)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/queue-status", s.handleQueueStatus)
	mux.HandleFunc("GET /api/session-status", s.handleSessionStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

func (s *Server) middlewares() *middleware.Chain {
	chain := middleware.NewChain(
		errorhandler.NewErrorHandler(nil, s.logger),
		enricher.NewRequestID(nil),
		logger.NewRequestLogger(s.logger),
		middleware.NewFunc("CORS", corsHandler(s.cfg.CORSOrigins)),
	)
	if s.cfg.RateLimitRPS > 0 {
		chain.Add(limiter.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}
	chain.Add(validator.NewInputValidator(s.cfg.MaxBodyBytes))
	return chain
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", enricher.HeaderRequestID},
		ExposedHeaders:   []string{enricher.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) == 1 && origins[0] == "*" {
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

// Handler returns the full handler chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
