package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/agentgate/chatlog"
	"github.com/sweetpotato0/agentgate/config"
	"github.com/sweetpotato0/agentgate/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/agentgate/factory"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/pkg/telemetry"
	"github.com/sweetpotato0/agentgate/prompt"
	"github.com/sweetpotato0/agentgate/server"
	"github.com/sweetpotato0/agentgate/session"
	"github.com/sweetpotato0/agentgate/state/store"
	"github.com/sweetpotato0/agentgate/tokenizer"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Long: `Run the gateway HTTP server until SIGINT or SIGTERM.

Settings come from environment variables (PORT, MAX_ACTIVE_SESSIONS,
SESSION_INACTIVITY_MS, OPENAI_API_KEY, CDP_API_KEY_NAME, ...) and, with
--config, from a config file using the same lower-cased keys.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(opts.configFile)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + strconv.Itoa(cfg.Port)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":<PORT>\")")
	return cmd
}

// runServe wires the gateway and serves until ctx ends.
func runServe(ctx context.Context, cfg *config.Config, addr string) (err error) {
	logger := logging.Configure(cfg.Log.Format, cfg.Log.Level)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "agentgate",
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Disable:        cfg.Telemetry.Disabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := shutdownTelemetry(context.Background()); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	if credErr := cfg.ValidateCredentials(); credErr != nil {
		logger.Warn("sessions cannot be created until credentials are configured", "error", credErr)
	}

	st, err := store.Open(ctx, cfg.State)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("failed to close state store", "error", closeErr)
		}
	}()

	prompts, err := prompt.NewGatewayManager(cfg.Prompts)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	chats, err := chatlog.Open(cfg.ChatLogFile)
	if err != nil {
		return err
	}
	defer chats.Close()

	agents := factory.New(cfg, st, prompts, factory.WithTokenCounter(tokenCounter(cfg.LLM.Model, logger)))
	sessions := session.NewManager(agents,
		session.WithMaxActive(cfg.MaxActiveSessions),
		session.WithInactivity(cfg.SessionInactivity),
		session.WithFactoryTimeout(cfg.FactoryTimeout),
		session.WithEventHook(chats.SessionEvent),
	)

	srv := server.New(server.Config{
		Addr:            addr,
		MaxMessageChars: cfg.MaxMessageChars,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitRPS:    cfg.RateLimit.RPS,
		RateLimitBurst:  cfg.RateLimit.Burst,
	}, sessions, prompts, server.WithChatLog(chats))

	logger.Info("agentgate starting",
		"addr", addr,
		"version", Version,
		"max_active_sessions", cfg.MaxActiveSessions,
		"session_inactivity", cfg.SessionInactivity.String(),
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"state_backend", cfg.State.Backend,
		"network", cfg.CDP.NetworkID,
	)

	l, err := listen(addr, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(l) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			sessions.Close(shutdownCtx),
		)
	})
	return g.Wait()
}

// listen binds addr. When the port is taken it retries once on a random
// port of the same host.
func listen(addr string, logger *slog.Logger) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	host, _, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Warn("address in use, falling back to a random port", "addr", addr)
	l, err = net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("listen on random port: %w", err)
	}
	return l, nil
}

// tokenCounter returns a tiktoken counter for model, or the approximate
// counter when tiktoken has no encoding for it (Claude models).
func tokenCounter(model string, logger *slog.Logger) tokenizer.Counter {
	tk, err := tiktoken.New(model)
	if err != nil {
		logger.Debug("using approximate token counts", "model", model, "error", err)
		return tokenizer.Approximate{}
	}
	return tk
}
