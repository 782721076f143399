package llm

import "github.com/bestbox-ai/orchestrator/pkg/model"

// EstimateTokens approximates a token count without a tokenizer: roughly
// one token per 4 bytes of non-CJK text, or 1.5 characters for CJK text
// (spec.md §4.5's estimation heuristic). Shared by the context-limit
// pre-check here and by pkg/contextwindow's compaction budget so both
// components agree on what "over budget" means.
func EstimateTokens(s string) int {
	var nonCJKBytes int
	var cjkChars float64
	for _, r := range s {
		if isCJK(r) {
			cjkChars++
		} else {
			nonCJKBytes += runeByteLen(r)
		}
	}
	return int(float64(nonCJKBytes)/4.0+cjkChars/1.5) + 1
}

// EstimateMessagesTokens sums the estimated token cost of a message list,
// including a small fixed overhead per message for role/metadata framing.
func EstimateMessagesTokens(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content) + 4
		for _, step := range m.ReasoningTrace {
			total += EstimateTokens(step.Content)
		}
	}
	return total
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana/Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	default:
		return false
	}
}

func runeByteLen(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}
