package tiktoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sweetpotato0/agentgate/tokenizer"
)

var _ tokenizer.Counter = (*Tokenizer)(nil)

func TestCountTokens(t *testing.T) {
	tk, err := New("gpt-4o-mini")
	if err != nil {
		// The BPE ranks are fetched on first use; offline runs cannot load them.
		t.Skipf("encoding unavailable: %v", err)
	}

	ids := tk.Encode("hello world")
	assert.Equal(t, len(ids), tk.CountTokens("hello world"))
	assert.Equal(t, "hello world", tk.Decode(ids))
	assert.Zero(t, tk.CountTokens(""))
}

func TestNewUnknownEncoding(t *testing.T) {
	_, err := New("definitely-not-an-encoding")
	assert.Error(t, err)
}
