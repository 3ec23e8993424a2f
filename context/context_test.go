package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/agentgate/message"
	"github.com/sweetpotato0/agentgate/tokenizer"
)

func TestMaxSizeKeepsSystemMessages(t *testing.T) {
	c := New(WithMaxSize(3))
	c.AddMessage(message.NewMessage(message.RoleSystem, "sys"))
	for _, s := range []string{"u1", "a1", "u2", "a2"} {
		c.AddMessage(message.NewMessage(message.RoleUser, s))
	}

	msgs := c.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "u2", msgs[1].Content)
	assert.Equal(t, "a2", msgs[2].Content)
	assert.Equal(t, "a2", c.GetLastMessage().Content)
}

func TestTokenBudget(t *testing.T) {
	c := New(WithTokenBudget(9, tokenizer.Approximate{}))
	c.AddMessage(message.NewMessage(message.RoleSystem, "rules")) // 2 tokens
	c.AddMessage(message.NewMessage(message.RoleUser, strings.Repeat("x", 16)))
	c.AddMessage(message.NewMessage(message.RoleUser, strings.Repeat("y", 16)))

	assert.LessOrEqual(t, c.Tokens(), 9)
	msgs := c.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleSystem, msgs[0].Role)
	assert.Equal(t, strings.Repeat("y", 16), msgs[1].Content)
}

func TestNewestMessageIsNeverDropped(t *testing.T) {
	c := New(WithTokenBudget(1, tokenizer.Approximate{}))
	c.AddMessage(message.NewMessage(message.RoleUser, strings.Repeat("z", 100)))
	assert.Equal(t, 1, c.Size())
}

func TestToolResponsesDroppedWithTheirCall(t *testing.T) {
	c := New(WithMaxSize(4))
	c.AddMessage(message.NewToolCallMessage("", []message.ToolCall{{ID: "1", Name: "t"}}))
	c.AddMessage(message.NewToolResponseMessage("1", "r"))
	c.AddMessage(message.NewMessage(message.RoleAssistant, "done"))
	c.AddMessage(message.NewMessage(message.RoleUser, "next"))
	c.AddMessage(message.NewMessage(message.RoleAssistant, "reply"))

	for _, m := range c.GetMessages() {
		assert.NotEqual(t, message.RoleTool, m.Role, "orphaned tool response kept")
	}
}
