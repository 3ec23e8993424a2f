// Package factory builds the agent behind each chat session from the shared
// wallet state.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sweetpotato0/agentgate/agent"
	"github.com/sweetpotato0/agentgate/config"
	"github.com/sweetpotato0/agentgate/contrib/provider"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/pkg/telemetry"
	"github.com/sweetpotato0/agentgate/prompt"
	"github.com/sweetpotato0/agentgate/session"
	"github.com/sweetpotato0/agentgate/state"
	"github.com/sweetpotato0/agentgate/tokenizer"
	"github.com/sweetpotato0/agentgate/wallet"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// AgentName is the name every session agent is created with.
	AgentName = "Titan Agent"
	// ThreadPrefix prefixes the per-session thread id.
	ThreadPrefix = "titan-"
	// DefaultTokenBudget caps each session's conversation history.
	DefaultTokenBudget = 32000
)

// ClientBuilder creates the LLM client for a new agent.
type ClientBuilder func(config.LLMConfig) (provider.Client, error)

// Factory implements session.Factory. All sessions share one wallet, stored
// under cfg.State.Key; creations are serialized so that concurrent sessions
// never race on load, configure and save.
type Factory struct {
	cfg     config.Config
	store   state.Store
	prompts *prompt.Manager

	newClient   ClientBuilder
	counter     tokenizer.Counter
	tokenBudget int
	logger      *slog.Logger

	mu sync.Mutex
}

var _ session.Factory = (*Factory)(nil)

// Option is a function that configures a Factory.
type Option func(*Factory)

// WithClientBuilder replaces provider.New, mainly for tests.
func WithClientBuilder(b ClientBuilder) Option {
	return func(f *Factory) {
		if b != nil {
			f.newClient = b
		}
	}
}

// WithTokenCounter sets the counter used to trim agent histories.
func WithTokenCounter(c tokenizer.Counter) Option {
	return func(f *Factory) {
		if c != nil {
			f.counter = c
		}
	}
}

// WithTokenBudget sets the per-session history budget in tokens.
func WithTokenBudget(n int) Option {
	return func(f *Factory) {
		if n > 0 {
			f.tokenBudget = n
		}
	}
}

// WithLogger overrides the logger used by the factory.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New returns a factory for cfg. Credentials are not checked here but on
// every Create, so a misconfigured gateway still serves status endpoints.
func New(cfg *config.Config, store state.Store, prompts *prompt.Manager, opts ...Option) *Factory {
	f := &Factory{
		cfg:         *cfg,
		store:       store,
		prompts:     prompts,
		newClient:   provider.New,
		counter:     tokenizer.Approximate{},
		tokenBudget: DefaultTokenBudget,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.WithComponent("factory")
	}
	if cfg.CDP.NetworkDefaulted {
		f.logger.Warn("NETWORK_ID not set, defaulting to " + config.DefaultNetworkID)
	}
	return f
}

// Create implements session.Factory.
func (f *Factory) Create(ctx context.Context, sessionID string) (h *session.Handle, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "factory.create", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("llm.provider", f.cfg.LLM.Provider),
	))
	defer func() { telemetry.End(span, err) }()

	if err := f.cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	client, err := f.newClient(f.cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w, err := f.loadWallet(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("wallet.network", w.NetworkID()))

	system, err := f.prompts.SystemPrompt(w.NetworkID())
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	ag := agent.New(
		agent.WithName(AgentName),
		agent.WithSystemPrompt(system),
		agent.WithProvider(client),
		agent.WithTokenBudget(f.tokenBudget, f.counter),
		agent.WithLogger(f.logger.With("session", sessionID)),
	)
	if err := ag.RegisterTools(ctx, wallet.NewToolkit(w)); err != nil {
		return nil, fmt.Errorf("register wallet tools: %w", err)
	}

	blob, err := w.Export()
	if err != nil {
		return nil, fmt.Errorf("export wallet: %w", err)
	}
	if err := f.store.Save(ctx, f.cfg.State.Key, blob); err != nil {
		return nil, fmt.Errorf("persist wallet: %w", err)
	}

	threadID := ThreadPrefix + uuid.NewString()
	f.logger.Info("agent created", "id", sessionID, "thread_id", threadID,
		"model", client.Model(), "wallet", w.ID(), "network", w.NetworkID())

	return &session.Handle{
		Agent:  ag,
		Config: agent.RunConfig{ThreadID: threadID},
		Model:  client.Model(),
	}, nil
}

// loadWallet restores the shared wallet or creates it on first use. A store
// that fails for any reason other than a missing key aborts the creation so
// the stored wallet is never replaced by a fresh one.
func (f *Factory) loadWallet(ctx context.Context) (*wallet.Wallet, error) {
	data, err := f.store.Load(ctx, f.cfg.State.Key)
	switch {
	case errors.Is(err, errorskg.ErrNotFound):
		f.logger.Info("no stored wallet; creating a new one", "key", f.cfg.State.Key)
		data = nil
	case err != nil:
		return nil, fmt.Errorf("load wallet state: %w", err)
	}

	w, err := wallet.Configure(wallet.Config{
		APIKeyName:       f.cfg.CDP.APIKeyName,
		APIKeyPrivateKey: f.cfg.CDP.PrivateKey(),
		NetworkID:        f.cfg.CDP.NetworkID,
		Data:             data,
	})
	if err != nil {
		return nil, fmt.Errorf("configure wallet: %w", err)
	}
	if w.NetworkID() != f.cfg.CDP.NetworkID {
		f.logger.Warn("stored wallet belongs to a different network; keeping it",
			"wallet_network", w.NetworkID(), "configured_network", f.cfg.CDP.NetworkID)
	}
	return w, nil
}
