package claude

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/agentgate/agent"
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/tool"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("sk-ant-test", srv.URL)
	cfg.MaxRetries = 0
	return New(cfg)
}

func TestGenerateText(t *testing.T) {
	var body map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "{\"mode\":\"GENERAL\",\"message\":\"hi\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`)
	})

	resp, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, "rules"),
			message.NewMessage(message.RoleUser, "hello"),
		},
		Tools: []tool.Definition{(&tool.Tool{Name: "get_wallet_details", Description: "wallet"}).Definition()},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"mode":"GENERAL","message":"hi"}`, resp.Message.Content)
	assert.Equal(t, message.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25}, resp.Usage)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)

	system := body["system"].([]any)
	assert.Equal(t, "rules", system[0].(map[string]any)["text"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "get_wallet_details", tools[0].(map[string]any)["name"])
}

func TestGenerateToolUse(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5-20250929",
			"content": [
				{"type": "text", "text": "Checking."},
				{"type": "tool_use", "id": "toolu_1", "name": "get_network_info", "input": {"network": "sonic"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	})

	resp, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, "network?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Checking.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "sonic", resp.Message.ToolCalls[0].Args["network"])
}

func TestGenerateAPIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	})

	_, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, "x")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Claude API error")
}

func TestEncodeMessagesGroupsToolResults(t *testing.T) {
	system, msgs := encodeMessages([]*message.Message{
		message.NewMessage(message.RoleSystem, "a"),
		message.NewMessage(message.RoleSystem, "b"),
		message.NewMessage(message.RoleUser, "q"),
		message.NewToolCallMessage("", []message.ToolCall{{ID: "1", Name: "x"}, {ID: "2", Name: "y"}}),
		message.NewToolResponseMessage("1", "r1"),
		message.NewToolResponseMessage("2", "r2"),
		message.NewMessage(message.RoleAssistant, "final"),
	})

	assert.Equal(t, "a\nb", system)
	require.Len(t, msgs, 4)
	assert.Len(t, msgs[1].Content, 2)
	assert.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "1", msgs[2].Content[0].OfToolResult.ToolUseID)
}
