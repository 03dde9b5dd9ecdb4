// Package budget provides token estimation and history trimming for the
// answer engine. The generation backend's exact tokenizer is not available
// locally, so this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code). This deliberately
// under-estimates token counts to leave headroom for model overhead.
package budget

import "github.com/robolearn/coursechat/internal/generator"

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in
	// tokens, sized to leave room for the generated answer on small
	// context-window models.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateTurns returns the estimated total token count for a slice of
// conversation turns, summing role + content for each turn.
func EstimateTurns(turns []generator.Turn) int {
	total := 0
	for _, t := range turns {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(t.Role))
		total += Estimate(t.Content)
	}
	return total
}

// TrimHistory drops the oldest history turns until fixedTokens plus the
// history estimate fits within maxTokens. fixedTokens covers content that
// must never be trimmed (system prompt, retrieved context, the current
// question). If even an empty history exceeds the budget the empty slice
// is returned — callers should warn separately about oversized fixed
// content.
func TrimHistory(fixedTokens int, history []generator.Turn, maxTokens int) []generator.Turn {
	for len(history) > 0 {
		if fixedTokens+EstimateTurns(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
