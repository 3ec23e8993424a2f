package agent

import (
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/tool"
)

// GenerateRequest bundles inputs for one LLM invocation.
type GenerateRequest struct {
	Messages []*message.Message
	Tools    []tool.Definition
}

// GenerateResponse captures the LLM reply and its token accounting.
type GenerateResponse struct {
	Message *message.Message
	Usage   message.Usage
	Model   string
}

// RunConfig is the per-session token passed on every run. ThreadID selects
// the conversation history inside the agent.
type RunConfig struct {
	ThreadID string `json:"thread_id"`
}

// Result is the outcome of one Run.
type Result struct {
	// Content is the final assistant text.
	Content string
	// ToolLog holds the output of every tool executed during the run.
	ToolLog    []string
	Usage      message.Usage
	Model      string
	Iterations int
}
