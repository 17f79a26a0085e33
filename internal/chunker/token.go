package chunker

import "strings"

// EstimateTokens gives a rough token count for log output. OCR text is full of
// split words, so it counts whitespace-separated fields rather than characters.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
