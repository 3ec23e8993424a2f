package message

import (
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello, world!")

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}
	if msg.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", msg.Content)
	}
	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Expected non-zero created time")
	}
	if other := NewMessage(RoleUser, "x"); other.ID == msg.ID {
		t.Error("Expected unique IDs")
	}
}

func TestNewToolCallMessage(t *testing.T) {
	msg := NewToolCallMessage("", []ToolCall{
		{ID: "call1", Name: "get_wallet_details", Args: map[string]any{}},
	})

	if msg.Role != RoleAssistant {
		t.Errorf("Expected role %s, got %s", RoleAssistant, msg.Role)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "get_wallet_details" {
		t.Errorf("unexpected tool calls: %+v", msg.ToolCalls)
	}
}

func TestNewToolResponseMessage(t *testing.T) {
	msg := NewToolResponseMessage("call1", "result")

	if msg.Role != RoleTool {
		t.Errorf("Expected role %s, got %s", RoleTool, msg.Role)
	}
	if msg.Content != "result" {
		t.Errorf("Expected content 'result', got '%s'", msg.Content)
	}
	if msg.ToolID != "call1" {
		t.Errorf("Expected tool ID 'call1', got '%s'", msg.ToolID)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewToolCallMessage("", []ToolCall{{ID: "1", Name: "n", Args: map[string]any{"k": "v"}}})
	cloned := Clone(orig)
	cloned.ToolCalls[0].Args["k"] = "changed"

	if orig.ToolCalls[0].Args["k"] != "v" {
		t.Error("Clone shares tool call args with the original")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
	if CloneMessages(nil) != nil {
		t.Error("CloneMessages(nil) should be nil")
	}
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	if !u.IsZero() {
		t.Error("zero usage should report IsZero")
	}
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	if u.PromptTokens != 11 || u.CompletionTokens != 7 || u.TotalTokens != 18 {
		t.Errorf("unexpected usage: %+v", u)
	}
}
