package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproximate(t *testing.T) {
	var c Counter = Approximate{}
	assert.Equal(t, 0, c.CountTokens(""))
	assert.Equal(t, 1, c.CountTokens("abc"))
	assert.Equal(t, 1, c.CountTokens("abcd"))
	assert.Equal(t, 2, c.CountTokens("abcde"))
	assert.Equal(t, 1, c.CountTokens("日本"))
}
