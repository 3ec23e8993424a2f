// Package tokenizer estimates token counts for conversation trimming.
package tokenizer

import "unicode/utf8"

// Counter counts the tokens in a piece of text.
type Counter interface {
	CountTokens(text string) int
}

// Approximate estimates roughly four characters per token. It is used when
// no model-specific encoding is available.
type Approximate struct{}

func (Approximate) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
