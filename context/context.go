// Package context keeps the bounded message history of one conversation
// thread.
package context

import (
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/tokenizer"
)

// Context manages the conversation context including message history.
// It is not safe for concurrent use; the agent serializes access.
type Context struct {
	messages  []*message.Message
	maxSize   int // Maximum number of messages to keep
	maxTokens int // Token budget for the history, 0 disables it
	counter   tokenizer.Counter
}

// Option configures a Context.
type Option func(*Context)

// WithMaxSize caps the number of retained messages.
func WithMaxSize(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithTokenBudget caps the summed token count of retained messages.
func WithTokenBudget(tokens int, counter tokenizer.Counter) Option {
	return func(c *Context) {
		c.maxTokens = tokens
		if counter != nil {
			c.counter = counter
		}
	}
}

// New creates a new context with default settings
func New(opts ...Option) *Context {
	c := &Context{
		messages: make([]*message.Message, 0),
		maxSize:  100,
		counter:  tokenizer.Approximate{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddMessage adds a message to the context and trims the oldest
// non-system messages until both limits hold.
func (c *Context) AddMessage(msg *message.Message) {
	c.messages = append(c.messages, msg)
	c.trim()
}

func (c *Context) trim() {
	for c.overLimit() {
		idx := c.oldestDroppable()
		if idx < 0 {
			return
		}
		end := idx + 1
		// Tool responses belong to the assistant turn that requested them.
		if c.messages[idx].Role == message.RoleAssistant && len(c.messages[idx].ToolCalls) > 0 {
			for end < len(c.messages)-1 && c.messages[end].Role == message.RoleTool {
				end++
			}
		}
		c.messages = append(c.messages[:idx], c.messages[end:]...)
	}
}

func (c *Context) overLimit() bool {
	if len(c.messages) > c.maxSize {
		return true
	}
	return c.maxTokens > 0 && c.Tokens() > c.maxTokens
}

// oldestDroppable returns the first non-system message that is not the
// newest one, or -1.
func (c *Context) oldestDroppable() int {
	for i := 0; i < len(c.messages)-1; i++ {
		if c.messages[i].Role != message.RoleSystem {
			return i
		}
	}
	return -1
}

// Tokens returns the estimated token count of the retained history.
func (c *Context) Tokens() int {
	total := 0
	for _, m := range c.messages {
		total += c.counter.CountTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.counter.CountTokens(tc.Name)
		}
	}
	return total
}

// GetMessages returns a copy of the messages in the context
func (c *Context) GetMessages() []*message.Message {
	out := make([]*message.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// GetLastMessage returns the last message or nil if empty
func (c *Context) GetLastMessage() *message.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Size returns the current number of messages
func (c *Context) Size() int {
	return len(c.messages)
}
