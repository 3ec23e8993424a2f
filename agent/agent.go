package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	agentContext "github.com/sweetpotato0/agentgate/context"
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/pkg/logging"
	"github.com/sweetpotato0/agentgate/tokenizer"
	"github.com/sweetpotato0/agentgate/tool"
)

// ErrNoProvider is returned by Run when the agent has no LLM client.
var ErrNoProvider = errors.New("agent has no LLM provider")

// LLMClient defines the interface for LLM providers
type LLMClient interface {
	// Generate produces the next assistant message for the conversation
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Agent is a tool-using conversational agent. It keeps one message history
// per thread id and serializes runs.
type Agent struct {
	name          string
	systemPrompt  string
	maxIterations int
	historySize   int
	tokenBudget   int
	counter       tokenizer.Counter
	llm           LLMClient
	tools         *tool.Registry
	logger        *slog.Logger

	mu      sync.Mutex
	threads map[string]*agentContext.Context
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithName sets the agent name
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithMaxIterations sets the maximum iterations for tool calling
func WithMaxIterations(max int) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxIterations = max
		}
	}
}

// WithProvider sets the LLM provider
func WithProvider(provider LLMClient) Option {
	return func(a *Agent) {
		a.llm = provider
	}
}

// WithHistorySize caps the number of messages kept per thread.
func WithHistorySize(n int) Option {
	return func(a *Agent) {
		a.historySize = n
	}
}

// WithTokenBudget caps the token count of each thread's history using the
// given counter.
func WithTokenBudget(tokens int, counter tokenizer.Counter) Option {
	return func(a *Agent) {
		a.tokenBudget = tokens
		if counter != nil {
			a.counter = counter
		}
	}
}

// WithLogger overrides the logger used by the agent.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates a new agent with the given options
func New(opts ...Option) *Agent {
	a := &Agent{
		name:          "Agent",
		systemPrompt:  "You are a helpful AI assistant.",
		maxIterations: 10,
		historySize:   100,
		counter:       tokenizer.Approximate{},
		tools:         tool.NewRegistry(),
		threads:       make(map[string]*agentContext.Context),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.WithComponent("agent")
	}
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// RegisterTool registers a tool with the agent
func (a *Agent) RegisterTool(t *tool.Tool) error {
	return a.tools.Register(t)
}

// RegisterTools registers every tool supplied by p.
func (a *Agent) RegisterTools(ctx context.Context, p tool.Provider) error {
	return a.tools.RegisterFrom(ctx, p)
}

// Tools returns the registered tools.
func (a *Agent) Tools() []*tool.Tool {
	return a.tools.List()
}

// History returns a copy of the messages kept for a thread.
func (a *Agent) History(threadID string) []*message.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.threads[threadID]; ok {
		return h.GetMessages()
	}
	return nil
}

func (a *Agent) threadLocked(threadID string) *agentContext.Context {
	h, ok := a.threads[threadID]
	if ok {
		return h
	}
	h = agentContext.New(
		agentContext.WithMaxSize(a.historySize),
		agentContext.WithTokenBudget(a.tokenBudget, a.counter),
	)
	if a.systemPrompt != "" {
		h.AddMessage(message.NewMessage(message.RoleSystem, a.systemPrompt))
	}
	a.threads[threadID] = h
	return h
}

// Run sends input on the given thread and drives the tool loop until the
// model answers without tool calls.
func (a *Agent) Run(ctx context.Context, cfg RunConfig, input string) (*Result, error) {
	if a.llm == nil {
		return nil, ErrNoProvider
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	history := a.threadLocked(cfg.ThreadID)
	history.AddMessage(message.NewMessage(message.RoleUser, input))

	result := &Result{}
	for i := 0; i < a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.llm.Generate(ctx, &GenerateRequest{
			Messages: history.GetMessages(),
			Tools:    a.tools.Definitions(),
		})
		if err != nil {
			return nil, fmt.Errorf("LLM generation failed: %w", err)
		}
		if resp == nil || resp.Message == nil {
			return nil, fmt.Errorf("LLM returned no message")
		}

		result.Iterations = i + 1
		result.Usage.Add(resp.Usage)
		if resp.Model != "" {
			result.Model = resp.Model
		}
		history.AddMessage(resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			result.Content = resp.Message.Content
			return result, nil
		}

		for _, call := range resp.Message.ToolCalls {
			out, err := a.tools.Execute(ctx, call.Name, call.Args)
			if err != nil {
				a.logger.Warn("tool call failed", "thread", cfg.ThreadID, "tool", call.Name, "error", err)
				out = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
			}
			result.ToolLog = append(result.ToolLog, out)
			history.AddMessage(message.NewToolResponseMessage(call.ID, out))
		}
	}

	return nil, fmt.Errorf("max iterations (%d) reached", a.maxIterations)
}
